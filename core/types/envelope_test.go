package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clawnet/clawnet/crypto"
)

func TestEnvelopeSignAndVerify(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	env := &Envelope{
		V: SchemaVersion, Type: "wallet.transfer", Issuer: key.PubKey().DID(), Ts: 1000, Nonce: 1,
		Payload: []byte(`{"from":"a","to":"b","amount":"10","fee":"0"}`),
	}
	require.NoError(t, env.Sign(key))
	require.NotEmpty(t, env.Hash)
	require.NotEmpty(t, env.Sig)

	wantHash, err := env.ComputeHash()
	require.NoError(t, err)
	require.Equal(t, wantHash, env.Hash)
}

func TestEnvelopeHashChangesWithPayload(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	base := &Envelope{V: SchemaVersion, Type: "wallet.transfer", Issuer: key.PubKey().DID(), Ts: 1000, Nonce: 1, Payload: []byte(`{"amount":"10"}`)}
	require.NoError(t, base.Sign(key))

	mutated := *base
	mutated.Payload = []byte(`{"amount":"20"}`)
	newHash, err := mutated.ComputeHash()
	require.NoError(t, err)
	require.NotEqual(t, base.Hash, newHash)
}

func TestTypeFamily(t *testing.T) {
	require.Equal(t, "wallet.transfer", TypeFamily("wallet.transfer"))
	require.Equal(t, "contract.milestone", TypeFamily("contract.milestone.submit"))
	require.Equal(t, "dao.proposal", TypeFamily("dao.proposal.advance"))
}

func TestDecodePayloadRejectsEmpty(t *testing.T) {
	env := &Envelope{Type: "wallet.transfer"}
	var dst struct{}
	require.Error(t, env.DecodePayload(&dst))
}
