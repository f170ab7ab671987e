package identity

import (
	"encoding/json"
	"fmt"

	cerrors "github.com/clawnet/clawnet/core/errors"
	"github.com/clawnet/clawnet/crypto"
)

const subsystem = "identity"

// CreatePayload is the body of an identity.create envelope: the full DID
// document being registered.
type CreatePayload struct {
	Document Document `json:"document"`
}

// UpdatePayload is the body of an identity.update envelope: the new
// document plus the hash of the document it supersedes.
type UpdatePayload struct {
	Document    Document `json:"document"`
	PrevDocHash string   `json:"prevDocHash"`
}

// PlatformLinkPayload is the body of an identity.platform.link envelope.
type PlatformLinkPayload struct {
	Link PlatformLink `json:"link"`
}

// CapabilityRegisterPayload is the body of an identity.capability.register
// envelope.
type CapabilityRegisterPayload struct {
	Capability Capability `json:"capability"`
}

// ApplyCreate registers a brand-new DID document. The engine has already
// verified the envelope's signature against the key embedded in the
// document itself (the bootstrap case — there is no prior state to resolve
// the issuer against) and that no prior envelope touched this resource.
func ApplyCreate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p CreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	doc := p.Document
	if doc.DID != issuer {
		return s, cerrors.Precondition(subsystem, "document DID must equal issuer")
	}
	if err := verifyDIDBinding(doc); err != nil {
		return s, cerrors.Precondition(subsystem, err.Error())
	}
	if _, exists := s.Documents[issuer]; exists {
		return s, cerrors.Precondition(subsystem, "DID already registered")
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.PrevDocHash = ""
	s.Documents[issuer] = &doc
	return s, nil
}

// ApplyUpdate rotates a DID document's keys or metadata. The engine has
// already verified the envelope was signed by the document's *previous*
// auth key (design note: the conservative reading of the ambiguous source,
// see DESIGN.md open question #2) and that resourcePrev matches the last
// mutating envelope for this DID.
func ApplyUpdate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p UpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	existing, ok := s.Documents[issuer]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown DID")
	}
	prevHash, err := crypto.CanonicalHash(existing)
	if err != nil {
		return s, cerrors.Wrap(cerrors.KindPreconditionFailed, "hash previous document", err)
	}
	if p.PrevDocHash != prevHash {
		return s, cerrors.Precondition(subsystem, "prevDocHash does not match stored document")
	}
	doc := p.Document
	if doc.DID != issuer {
		return s, cerrors.Precondition(subsystem, "document DID is immutable")
	}
	if err := verifyDIDBinding(doc); err != nil {
		return s, cerrors.Precondition(subsystem, err.Error())
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = now
	doc.PrevDocHash = prevHash
	// Platform links and capabilities accumulate across updates; an update
	// payload that omits them is not treated as revocation. Revocation is a
	// distinct future event type, not modeled here.
	if len(doc.Platforms) == 0 {
		doc.Platforms = existing.Platforms
	}
	if len(doc.Capabilities) == 0 {
		doc.Capabilities = existing.Capabilities
	}
	s.Documents[issuer] = &doc
	return s, nil
}

// ApplyPlatformLink attaches a verified platform credential to the issuer's
// document.
func ApplyPlatformLink(s State, issuer string, payload []byte, now int64, resolveIssuerKey func(did string) (*crypto.PublicKey, bool)) (State, error) {
	var p PlatformLinkPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	doc, ok := s.Documents[issuer]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown DID")
	}
	platformKey, ok := resolveIssuerKey(p.Link.IssuerDID)
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown platform issuer DID")
	}
	if !p.Link.VerifyCredential(issuer, platformKey) {
		return s, cerrors.Precondition(subsystem, "invalid platform credential proof")
	}
	link := p.Link
	link.LinkedAt = now
	clone := doc.Clone()
	clone.Platforms = append(clone.Platforms, link)
	clone.UpdatedAt = now
	s.Documents[issuer] = clone
	return s, nil
}

// ApplyCapabilityRegister declares a capability offered by the issuer,
// optionally backed by a verifiable issuer credential.
func ApplyCapabilityRegister(s State, issuer string, payload []byte, now int64, resolveIssuerKey func(did string) (*crypto.PublicKey, bool)) (State, error) {
	var p CapabilityRegisterPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	doc, ok := s.Documents[issuer]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown DID")
	}
	cap := p.Capability
	if cap.Name == "" {
		return s, cerrors.Precondition(subsystem, "capability name required")
	}
	if cap.CredentialSig != "" {
		issuerKey, ok := resolveIssuerKey(cap.IssuerDID)
		if !ok {
			return s, cerrors.Precondition(subsystem, "unknown capability credential issuer")
		}
		sig, err := decodeHexSig(cap.CredentialSig)
		if err != nil {
			return s, cerrors.Precondition(subsystem, "malformed capability credential signature")
		}
		msg := []byte(issuer + "|" + cap.Name + "|" + cap.PricingSchema)
		if !issuerKey.Verify(msg, sig) {
			return s, cerrors.Precondition(subsystem, "invalid capability credential proof")
		}
	}
	cap.RegisteredAt = now
	clone := doc.Clone()
	clone.Capabilities = append(clone.Capabilities, cap)
	clone.UpdatedAt = now
	s.Documents[issuer] = clone
	return s, nil
}

// verifyDIDBinding checks that a document's DID string is cryptographically
// derived from its declared primary auth key.
func verifyDIDBinding(doc Document) error {
	pubBytes, err := decodeHexSig(doc.AuthPublicKey)
	if err != nil {
		return fmt.Errorf("malformed auth public key: %w", err)
	}
	want := crypto.EncodeDID(pubBytes)
	if want != doc.DID {
		return fmt.Errorf("DID is not derived from the document's primary public key")
	}
	return nil
}
