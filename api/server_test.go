package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawnet/clawnet/core/state"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/crypto"
	"github.com/clawnet/clawnet/gossip"
	"github.com/clawnet/clawnet/identity"
	"github.com/clawnet/clawnet/ratelimit"
	"github.com/clawnet/clawnet/storage"
)

func newTestServer(t *testing.T) (*Server, *state.Store) {
	t.Helper()
	log, err := storage.OpenEventLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	snapshots, err := storage.OpenSnapshotStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = snapshots.Close() })

	store := state.New("claw-treasury")
	transport := gossip.NewLoopbackTransport()
	relay := gossip.NewRelay(store, log, transport, ratelimit.New(100, 100))
	syncer := gossip.NewSyncer(log, snapshots)
	return NewServer(store, relay, syncer), store
}

func sealedIdentityCreate(t *testing.T) *ctypes.Envelope {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	did := key.PubKey().DID()
	payload, err := json.Marshal(identity.CreatePayload{
		Document: identity.Document{DID: did, AuthPublicKey: hex.EncodeToString(key.PubKey().Bytes())},
	})
	require.NoError(t, err)
	env := &ctypes.Envelope{V: ctypes.SchemaVersion, Type: "identity.create", Issuer: did, Ts: 1000, Nonce: 1, Payload: payload}
	require.NoError(t, env.Sign(key))
	return env
}

func TestHandleSubmitAcceptsValidEnvelope(t *testing.T) {
	server, store := newTestServer(t)
	env := sealedIdentityCreate(t)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/envelopes", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.handleSubmit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, env.Hash, resp["hash"])

	snap := store.Snapshot()
	require.Len(t, snap.Identities.Documents, 1)
}

func TestHandleSubmitRejectsBadSignatureWithMappedCode(t *testing.T) {
	server, _ := newTestServer(t)
	env := sealedIdentityCreate(t)
	env.Sig = hex.EncodeToString(make([]byte, 64))
	body, err := json.Marshal(env)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/envelopes", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.handleSubmit(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "UNAUTHORIZED", resp["code"])
}

func TestHandleSubmitRejectsWrongMethod(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/envelopes", nil)
	rec := httptest.NewRecorder()
	server.handleSubmit(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSnapshotReturnsCurrentState(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/snapshot", nil)
	rec := httptest.NewRecorder()
	server.handleSnapshot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Identities")
}
