// Package identity implements the identity reducer: DID
// documents, key rotation, platform-link credentials and capability
// credentials.
package identity

import "github.com/clawnet/clawnet/crypto"

// Document is a DID document: the record binding a DID string to its
// current authentication key, an optional key-agreement key, and the
// platform links / capabilities it has accumulated.
type Document struct {
	DID              string       `json:"did"`
	AuthPublicKey    string       `json:"authPublicKey"`    // hex-encoded Ed25519 public key
	AgreementPublicKey string     `json:"agreementPublicKey,omitempty"` // hex-encoded X25519 public key
	PrevDocHash      string       `json:"prevDocHash,omitempty"`
	Platforms        []PlatformLink `json:"platforms,omitempty"`
	Capabilities     []Capability   `json:"capabilities,omitempty"`
	CreatedAt        int64        `json:"createdAt"`
	UpdatedAt        int64        `json:"updatedAt"`
}

// Clone deep-copies a Document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	clone := *d
	if len(d.Platforms) > 0 {
		clone.Platforms = append([]PlatformLink(nil), d.Platforms...)
	}
	if len(d.Capabilities) > 0 {
		clone.Capabilities = append([]Capability(nil), d.Capabilities...)
	}
	return &clone
}

// PlatformLink attaches a verifiable credential issued by a platform DID
// binding an external username to this DID.
type PlatformLink struct {
	Platform      string `json:"platform"`      // e.g. "github", "x"
	Username      string `json:"username"`
	IssuerDID     string `json:"issuerDid"`      // the platform's attesting DID
	CredentialSig string `json:"credentialSig"`  // hex signature by issuer's auth key
	LinkedAt      int64  `json:"linkedAt"`
}

// credentialBytes returns the bytes the platform issuer signs over to
// attest this link, binding platform+username+subject DID together.
func (p PlatformLink) credentialBytes(subjectDID string) []byte {
	return []byte(p.Platform + "|" + p.Username + "|" + subjectDID)
}

// VerifyCredential checks the embedded proof against the platform issuer's
// current auth key.
func (p PlatformLink) VerifyCredential(subjectDID string, issuerKey *crypto.PublicKey) bool {
	sig, err := decodeHexSig(p.CredentialSig)
	if err != nil {
		return false
	}
	return issuerKey.Verify(p.credentialBytes(subjectDID), sig)
}

// Capability declares a service the DID offers on the capability market.
type Capability struct {
	Name            string `json:"name"`
	PricingSchema   string `json:"pricingSchema"` // opaque, market-reducer interprets
	Description     string `json:"description,omitempty"`
	IssuerDID       string `json:"issuerDid,omitempty"`
	CredentialSig   string `json:"credentialSig,omitempty"`
	RegisteredAt    int64  `json:"registeredAt"`
}
