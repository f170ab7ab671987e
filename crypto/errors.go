package crypto

import "errors"

var (
	// ErrInvalidBase58 is returned when decoding a string outside the
	// base58btc alphabet.
	ErrInvalidBase58 = errors.New("crypto: invalid base58 character")
	// ErrInvalidDID is returned when a DID string is malformed or its
	// embedded key does not round-trip through the multicodec envelope.
	ErrInvalidDID = errors.New("crypto: invalid did:claw identifier")
	// ErrKeySize is returned when a key does not match the expected length
	// for its algorithm.
	ErrKeySize = errors.New("crypto: unexpected key size")
	// ErrInvalidAddress is returned when an address string fails checksum
	// validation or decodes to the wrong length.
	ErrInvalidAddress = errors.New("crypto: invalid claw address")
	// ErrChecksumMismatch is returned when an address's embedded checksum
	// does not match the recomputed value.
	ErrChecksumMismatch = errors.New("crypto: address checksum mismatch")
)
