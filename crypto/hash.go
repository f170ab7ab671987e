package crypto

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// HashSize is the digest length, in bytes, of the BLAKE3 hashes used to
// content-address envelopes and document revisions.
const HashSize = 32

// Hash returns the raw BLAKE3-256 digest of b.
func Hash(b []byte) [HashSize]byte {
	return blake3.Sum256(b)
}

// HashHex returns the hex-encoded BLAKE3-256 digest of b, the form stored in
// envelope.hash and resourcePrev fields.
func HashHex(b []byte) string {
	sum := Hash(b)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash canonicalizes v and returns its hex-encoded BLAKE3 digest in
// one step.
func CanonicalHash(v interface{}) (string, error) {
	canon, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return HashHex(canon), nil
}
