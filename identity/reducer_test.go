package identity

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawnet/clawnet/crypto"
)

func keyHex(t *testing.T, key *crypto.PrivateKey) string {
	t.Helper()
	return hex.EncodeToString(key.PubKey().Bytes())
}

func TestApplyCreateRegistersDocument(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	did := key.PubKey().DID()

	payload, err := json.Marshal(CreatePayload{Document: Document{DID: did, AuthPublicKey: keyHex(t, key)}})
	require.NoError(t, err)

	s, err := ApplyCreate(NewState(), did, payload, 1000)
	require.NoError(t, err)

	doc, ok := s.Get(did)
	require.True(t, ok)
	require.Equal(t, did, doc.DID)
	require.Equal(t, int64(1000), doc.CreatedAt)
}

func TestApplyCreateRejectsMismatchedDID(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	payload, err := json.Marshal(CreatePayload{Document: Document{DID: other.PubKey().DID(), AuthPublicKey: keyHex(t, key)}})
	require.NoError(t, err)

	_, err = ApplyCreate(NewState(), key.PubKey().DID(), payload, 1000)
	require.Error(t, err)
}

func TestApplyCreateRejectsDuplicateRegistration(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	did := key.PubKey().DID()
	payload, err := json.Marshal(CreatePayload{Document: Document{DID: did, AuthPublicKey: keyHex(t, key)}})
	require.NoError(t, err)

	s, err := ApplyCreate(NewState(), did, payload, 1000)
	require.NoError(t, err)

	_, err = ApplyCreate(s, did, payload, 1001)
	require.Error(t, err)
}

func TestApplyUpdateRotatesDocument(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	did := key.PubKey().DID()
	createPayload, err := json.Marshal(CreatePayload{Document: Document{DID: did, AuthPublicKey: keyHex(t, key)}})
	require.NoError(t, err)
	s, err := ApplyCreate(NewState(), did, createPayload, 1000)
	require.NoError(t, err)

	existing, _ := s.Get(did)
	prevHash, err := crypto.CanonicalHash(existing)
	require.NoError(t, err)

	updatePayload, err := json.Marshal(UpdatePayload{
		Document:    Document{DID: did, AuthPublicKey: keyHex(t, key), AgreementPublicKey: "ab"},
		PrevDocHash: prevHash,
	})
	require.NoError(t, err)

	s, err = ApplyUpdate(s, did, updatePayload, 2000)
	require.NoError(t, err)
	doc, _ := s.Get(did)
	require.Equal(t, "ab", doc.AgreementPublicKey)
	require.Equal(t, int64(1000), doc.CreatedAt)
}

func TestApplyUpdateRejectsStalePrevDocHash(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	did := key.PubKey().DID()
	createPayload, err := json.Marshal(CreatePayload{Document: Document{DID: did, AuthPublicKey: keyHex(t, key)}})
	require.NoError(t, err)
	s, err := ApplyCreate(NewState(), did, createPayload, 1000)
	require.NoError(t, err)

	updatePayload, err := json.Marshal(UpdatePayload{
		Document:    Document{DID: did, AuthPublicKey: keyHex(t, key)},
		PrevDocHash: "not-the-real-hash",
	})
	require.NoError(t, err)

	_, err = ApplyUpdate(s, did, updatePayload, 2000)
	require.Error(t, err)
}

func TestApplyPlatformLinkVerifiesCredential(t *testing.T) {
	subjectKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	subjectDID := subjectKey.PubKey().DID()
	issuerKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	issuerDID := issuerKey.PubKey().DID()

	createPayload, err := json.Marshal(CreatePayload{Document: Document{DID: subjectDID, AuthPublicKey: keyHex(t, subjectKey)}})
	require.NoError(t, err)
	s, err := ApplyCreate(NewState(), subjectDID, createPayload, 1000)
	require.NoError(t, err)

	link := PlatformLink{Platform: "github", Username: "octocat", IssuerDID: issuerDID}
	sig := issuerKey.Sign(link.credentialBytes(subjectDID))
	link.CredentialSig = hex.EncodeToString(sig)

	resolve := func(did string) (*crypto.PublicKey, bool) {
		if did == issuerDID {
			return issuerKey.PubKey(), true
		}
		return nil, false
	}

	linkPayload, err := json.Marshal(PlatformLinkPayload{Link: link})
	require.NoError(t, err)
	s, err = ApplyPlatformLink(s, subjectDID, linkPayload, 2000, resolve)
	require.NoError(t, err)

	doc, _ := s.Get(subjectDID)
	require.Len(t, doc.Platforms, 1)
	require.Equal(t, "octocat", doc.Platforms[0].Username)
}

func TestApplyPlatformLinkRejectsBadCredential(t *testing.T) {
	subjectKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	subjectDID := subjectKey.PubKey().DID()
	issuerKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	createPayload, err := json.Marshal(CreatePayload{Document: Document{DID: subjectDID, AuthPublicKey: keyHex(t, subjectKey)}})
	require.NoError(t, err)
	s, err := ApplyCreate(NewState(), subjectDID, createPayload, 1000)
	require.NoError(t, err)

	link := PlatformLink{Platform: "github", Username: "octocat", IssuerDID: issuerKey.PubKey().DID(), CredentialSig: hex.EncodeToString(make([]byte, 64))}
	resolve := func(did string) (*crypto.PublicKey, bool) { return issuerKey.PubKey(), true }

	linkPayload, err := json.Marshal(PlatformLinkPayload{Link: link})
	require.NoError(t, err)
	_, err = ApplyPlatformLink(s, subjectDID, linkPayload, 2000, resolve)
	require.Error(t, err)
}

func TestApplyCapabilityRegisterRequiresName(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	did := key.PubKey().DID()
	createPayload, err := json.Marshal(CreatePayload{Document: Document{DID: did, AuthPublicKey: keyHex(t, key)}})
	require.NoError(t, err)
	s, err := ApplyCreate(NewState(), did, createPayload, 1000)
	require.NoError(t, err)

	payload, err := json.Marshal(CapabilityRegisterPayload{Capability: Capability{}})
	require.NoError(t, err)
	resolve := func(did string) (*crypto.PublicKey, bool) { return nil, false }
	_, err = ApplyCapabilityRegister(s, did, payload, 2000, resolve)
	require.Error(t, err)
}
