package identity

import "encoding/hex"

func decodeHexSig(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
