// Package types defines the single universal record every subsystem agrees
// on: the signed, content-addressed event envelope, and the dotted type
// strings and type-families used to route and order it.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clawnet/clawnet/crypto"
)

// SchemaVersion is the current envelope schema version written by this
// node. Validation accepts only this value at MVP; future revisions widen
// the accepted set rather than silently reinterpreting old envelopes.
const SchemaVersion = 1

// Envelope is the canonical event record: every state change in the
// protocol is one signed Envelope.
type Envelope struct {
	V            int             `json:"v"`
	Type         string          `json:"type"`
	Issuer       string          `json:"issuer"`
	Ts           int64           `json:"ts"`
	Nonce        uint64          `json:"nonce"`
	ResourcePrev string          `json:"resourcePrev"`
	Payload      json.RawMessage `json:"payload"`
	Hash         string          `json:"hash"`
	Sig          string          `json:"sig"`
}

// Resource identifies the id and kind of the record an envelope mutates,
// used to key the per-resource causal chain (resourcePrev).
type Resource struct {
	Kind string
	ID   string
}

func (r Resource) String() string { return r.Kind + ":" + r.ID }

// TypeFamily returns the nonce-ordering family for an event type. Per design
// note #3, the family is the dotted type's first two segments (e.g.
// "wallet.transfer" -> "wallet.transfer", "contract.milestone.submit" ->
// "contract.milestone"), which groups closely related event kinds under one
// monotonic counter per issuer while still letting unrelated subsystems
// advance independently.
func TypeFamily(eventType string) string {
	parts := strings.Split(eventType, ".")
	if len(parts) <= 2 {
		return eventType
	}
	return strings.Join(parts[:2], ".")
}

// NonceKey identifies the per-issuer, per-type-family nonce counter an
// envelope must extend.
type NonceKey struct {
	Issuer string
	Family string
}

func (k NonceKey) String() string { return k.Issuer + "#" + k.Family }

// signingView is the struct canonicalized and hashed/signed; it is the
// envelope with hash and sig emptied.
type signingView struct {
	V            int             `json:"v"`
	Type         string          `json:"type"`
	Issuer       string          `json:"issuer"`
	Ts           int64           `json:"ts"`
	Nonce        uint64          `json:"nonce"`
	ResourcePrev string          `json:"resourcePrev"`
	Payload      json.RawMessage `json:"payload"`
	Hash         string          `json:"hash"`
	Sig          string          `json:"sig"`
}

// CanonicalBytes returns the canonical-JSON encoding of the envelope with
// hash and sig fields emptied, the exact bytes hashed. Sign does not sign
// these bytes directly: the Ed25519 signature covers the hex hash string.
func (e *Envelope) CanonicalBytes() ([]byte, error) {
	view := signingView{
		V:            e.V,
		Type:         e.Type,
		Issuer:       e.Issuer,
		Ts:           e.Ts,
		Nonce:        e.Nonce,
		ResourcePrev: e.ResourcePrev,
		Payload:      e.Payload,
		Hash:         "",
		Sig:          "",
	}
	return crypto.Canonicalize(view)
}

// ComputeHash recomputes the BLAKE3 canonical hash of the envelope.
func (e *Envelope) ComputeHash() (string, error) {
	b, err := e.CanonicalBytes()
	if err != nil {
		return "", err
	}
	return crypto.HashHex(b), nil
}

// Sign fills Hash and Sig using the provided issuer key, which must be the
// key backing e.Issuer.
func (e *Envelope) Sign(key *crypto.PrivateKey) error {
	hash, err := e.ComputeHash()
	if err != nil {
		return err
	}
	e.Hash = hash
	sigBytes := key.Sign([]byte(hash))
	e.Sig = fmt.Sprintf("%x", sigBytes)
	return nil
}

// DecodePayload unmarshals the envelope's payload into dst.
func (e *Envelope) DecodePayload(dst interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("types: empty payload for event %q", e.Type)
	}
	return json.Unmarshal(e.Payload, dst)
}
