package crypto

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
)

// addressVersion is the single supported address version byte. Future key
// algorithms would claim a new version rather than reusing this one.
const addressVersion byte = 0x00

const addressPrefix = "claw"

// Address is the bech-free claw<base58btc(version||pubkey||checksum)>
// representation of an Ed25519 public key. It is bijective with the
// corresponding DID: both are deterministic functions of the same 32-byte
// key.
type Address struct {
	pubkey [ed25519.PublicKeySize]byte
}

// NewAddress wraps a raw 32-byte Ed25519 public key as an address.
func NewAddress(pub []byte) (Address, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Address{}, fmt.Errorf("%w: address key must be %d bytes, got %d", ErrKeySize, ed25519.PublicKeySize, len(pub))
	}
	var a Address
	copy(a.pubkey[:], pub)
	return a, nil
}

// MustNewAddress is NewAddress but panics on error; used for values already
// known to be well formed (e.g. keys just generated locally).
func MustNewAddress(pub []byte) Address {
	a, err := NewAddress(pub)
	if err != nil {
		panic(err)
	}
	return a
}

// Bytes returns the raw 32-byte public key backing the address.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a.pubkey))
	copy(out, a.pubkey[:])
	return out
}

// String renders the claw<base58btc> textual form.
func (a Address) String() string {
	payload := make([]byte, 0, 1+len(a.pubkey))
	payload = append(payload, addressVersion)
	payload = append(payload, a.pubkey[:]...)
	checksum := addressChecksum(payload)
	payload = append(payload, checksum...)
	return addressPrefix + Base58Encode(payload)
}

// IsZero reports whether the address is the zero value (no key set).
func (a Address) IsZero() bool {
	return a.pubkey == [ed25519.PublicKeySize]byte{}
}

// DID returns the did:claw identifier bound to this address's key, the
// inverse of AddressFromDID.
func (a Address) DID() string {
	return EncodeDID(a.pubkey[:])
}

// DecodeAddress parses a claw<base58btc> string, validating its checksum.
func DecodeAddress(s string) (Address, error) {
	if len(s) <= len(addressPrefix) || s[:len(addressPrefix)] != addressPrefix {
		return Address{}, fmt.Errorf("%w: missing claw prefix", ErrInvalidAddress)
	}
	raw, err := Base58Decode(s[len(addressPrefix):])
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 1+ed25519.PublicKeySize+4 {
		return Address{}, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}
	if raw[0] != addressVersion {
		return Address{}, fmt.Errorf("%w: unsupported version byte 0x%02x", ErrInvalidAddress, raw[0])
	}
	payload := raw[:1+ed25519.PublicKeySize]
	checksum := raw[1+ed25519.PublicKeySize:]
	want := addressChecksum(payload)
	if !bytes.Equal(checksum, want) {
		return Address{}, ErrChecksumMismatch
	}
	return NewAddress(payload[1:])
}

// AddressFromDID derives the claw address bound to a did:claw identifier,
// the formal bijection required by §6 of the protocol.
func AddressFromDID(did string) (Address, error) {
	pub, err := DecodeDID(did)
	if err != nil {
		return Address{}, err
	}
	return NewAddress(pub)
}
