package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	msg := []byte("envelope-hash")
	sig := key.Sign(msg)
	require.True(t, key.PubKey().Verify(msg, sig))

	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.False(t, other.PubKey().Verify(msg, sig))
}

func TestDIDRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	did := key.PubKey().DID()
	raw, err := DecodeDID(did)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Bytes(), raw)
}

func TestDecodeDIDRejectsBadPrefix(t *testing.T) {
	_, err := DecodeDID("did:example:zabc")
	require.ErrorIs(t, err, ErrInvalidDID)
}

func TestPrivateKeyFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	k1, err := PrivateKeyFromSeed(seed)
	require.NoError(t, err)
	k2, err := PrivateKeyFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, k1.PubKey().Bytes(), k2.PubKey().Bytes())
}
