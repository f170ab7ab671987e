// Package crypto implements the self-sovereign identity primitives used by
// the protocol: Ed25519 signing keys, did:claw identifiers, claw addresses
// and the canonical JSON / BLAKE3 hashing scheme that envelopes are signed
// over.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// ed25519PubMulticodec is the multicodec varint prefix for an Ed25519 public
// key (0xed01), per the multiformats registry. DID strings embed this prefix
// so a resolver can tell the key algorithm from the identifier alone.
var ed25519PubMulticodec = []byte{0xed, 0x01}

// x25519PubMulticodec is the multicodec varint prefix for an X25519 public
// key (0xec01), used for the optional key-agreement key in DID documents.
var x25519PubMulticodec = []byte{0xec, 0x01}

// PrivateKey wraps an Ed25519 signing key.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// PublicKey wraps an Ed25519 verification key.
type PublicKey struct {
	key ed25519.PublicKey
}

// GeneratePrivateKey creates a new random Ed25519 keypair.
func GeneratePrivateKey() (*PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: priv}, nil
}

// PrivateKeyFromSeed reconstructs a signing key from its 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrKeySize, ed25519.SeedSize, len(seed))
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Bytes returns the full 64-byte private key encoding.
func (k *PrivateKey) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// Seed returns the 32-byte seed the key was derived from.
func (k *PrivateKey) Seed() []byte {
	return k.key.Seed()
}

// PubKey derives the corresponding public key.
func (k *PrivateKey) PubKey() *PublicKey {
	pub := k.key.Public().(ed25519.PublicKey)
	return &PublicKey{key: pub}
}

// Sign produces an Ed25519 signature over msg.
func (k *PrivateKey) Sign(msg []byte) []byte {
	return ed25519.Sign(k.key, msg)
}

// PublicKeyFromBytes wraps a raw 32-byte Ed25519 public key.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrKeySize, ed25519.PublicKeySize, len(b))
	}
	out := make([]byte, ed25519.PublicKeySize)
	copy(out, b)
	return &PublicKey{key: out}, nil
}

// Bytes returns the raw 32-byte public key.
func (k *PublicKey) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// Verify checks an Ed25519 signature produced over msg.
func (k *PublicKey) Verify(msg, sig []byte) bool {
	if k == nil || len(k.key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(k.key, msg, sig)
}

// DID renders the did:claw identifier bound to this public key:
// did:claw:z<base58btc(multicodec ed25519-pub || key)>.
func (k *PublicKey) DID() string {
	return EncodeDID(k.key)
}

// Address derives the claw<base58btc> address bound to this key.
func (k *PublicKey) Address() Address {
	return MustNewAddress(k.key)
}

// EncodeDID renders the did:claw identifier for a raw 32-byte Ed25519
// public key.
func EncodeDID(pub []byte) string {
	buf := make([]byte, 0, len(ed25519PubMulticodec)+len(pub))
	buf = append(buf, ed25519PubMulticodec...)
	buf = append(buf, pub...)
	return "did:claw:z" + Base58Encode(buf)
}

// DecodeDID parses a did:claw identifier, returning the embedded raw
// Ed25519 public key. It rejects strings whose multicodec prefix does not
// match ed25519-pub, keeping the identifier space unambiguous.
func DecodeDID(did string) ([]byte, error) {
	const prefix = "did:claw:z"
	if len(did) <= len(prefix) || did[:len(prefix)] != prefix {
		return nil, fmt.Errorf("%w: missing did:claw:z prefix", ErrInvalidDID)
	}
	raw, err := Base58Decode(did[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if len(raw) != len(ed25519PubMulticodec)+ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: unexpected key length", ErrInvalidDID)
	}
	if raw[0] != ed25519PubMulticodec[0] || raw[1] != ed25519PubMulticodec[1] {
		return nil, fmt.Errorf("%w: unsupported multicodec prefix", ErrInvalidDID)
	}
	return raw[len(ed25519PubMulticodec):], nil
}

// EncodeAgreementKey renders the multibase base58btc encoding ("z" prefix)
// of an X25519 key-agreement public key, for embedding in a DID document's
// keyAgreement field.
func EncodeAgreementKey(pub []byte) string {
	buf := make([]byte, 0, len(x25519PubMulticodec)+len(pub))
	buf = append(buf, x25519PubMulticodec...)
	buf = append(buf, pub...)
	return "z" + Base58Encode(buf)
}

// addressChecksum computes the 4-byte SHA-256 checksum over version||pubkey,
// mirroring the Base58Check-style scheme used by the address format.
func addressChecksum(versionAndKey []byte) []byte {
	sum := sha256.Sum256(versionAndKey)
	return sum[:4]
}
