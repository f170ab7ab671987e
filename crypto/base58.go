package crypto

import "math/big"

// base58BTCAlphabet is the Bitcoin/IPFS base58 alphabet used throughout the
// protocol for addresses and DID key encodings. This is a small
// self-contained implementation rather than an import of btcsuite/btcutil's
// base58 codec, which would bring a secp256k1-oriented dependency tree along;
// see DESIGN.md for the full justification.
const base58BTCAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Index [256]int8

func init() {
	for i := range base58Index {
		base58Index[i] = -1
	}
	for i, c := range base58BTCAlphabet {
		base58Index[byte(c)] = int8(i)
	}
}

// Base58Encode encodes b using the base58btc alphabet, preserving leading
// zero bytes as leading '1' characters.
func Base58Encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	zero := 0
	for zero < len(b) && b[zero] == 0 {
		zero++
	}
	num := new(big.Int).SetBytes(b)
	base := big.NewInt(58)
	mod := new(big.Int)
	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		out = append(out, base58BTCAlphabet[mod.Int64()])
	}
	for i := 0; i < zero; i++ {
		out = append(out, base58BTCAlphabet[0])
	}
	// reverse
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Base58Decode reverses Base58Encode, returning an error for characters
// outside the base58btc alphabet.
func Base58Decode(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	num := new(big.Int)
	base := big.NewInt(58)
	zero := 0
	for zero < len(s) && s[zero] == base58BTCAlphabet[0] {
		zero++
	}
	for i := 0; i < len(s); i++ {
		idx := base58Index[s[i]]
		if idx < 0 {
			return nil, ErrInvalidBase58
		}
		num.Mul(num, base)
		num.Add(num, big.NewInt(int64(idx)))
	}
	decoded := num.Bytes()
	out := make([]byte, zero+len(decoded))
	copy(out[zero:], decoded)
	return out, nil
}
