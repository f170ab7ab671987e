package gossip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/storage"
)

func openTestStores(t *testing.T) (*storage.EventLog, *storage.SnapshotStore) {
	t.Helper()
	log, err := storage.OpenEventLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	snapshots, err := storage.OpenSnapshotStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = snapshots.Close() })
	return log, snapshots
}

func TestSyncerAnswerRangeSync(t *testing.T) {
	log, snapshots := openTestStores(t)
	syncer := NewSyncer(log, snapshots)

	env := &ctypes.Envelope{V: 1, Type: "wallet.transfer", Issuer: "did:claw:alice", Nonce: 1, Hash: "hash-1"}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, log.Append(env.Hash, raw, env.Issuer, "wallet.transfer", env.Nonce, ""))

	resp, err := syncer.AnswerRangeSync(RangeSyncRequest{FromHash: "", Limit: 0})
	require.NoError(t, err)
	require.True(t, resp.Eof)
	require.Len(t, resp.Envelopes, 1)
	require.Equal(t, "hash-1", resp.Envelopes[0].Hash)
}

func TestSyncerAnswerSnapshotChunk(t *testing.T) {
	log, snapshots := openTestStores(t)
	syncer := NewSyncer(log, snapshots)

	require.NoError(t, snapshots.Put("hash-1", []byte("0123456789")))

	chunk, err := syncer.AnswerSnapshotChunk(SnapshotChunkRequest{SnapshotHash: "hash-1", Offset: 2, Size: 4})
	require.NoError(t, err)
	require.Equal(t, []byte("2345"), chunk.Data)
	require.False(t, chunk.Eof)

	last, err := syncer.AnswerSnapshotChunk(SnapshotChunkRequest{SnapshotHash: "hash-1", Offset: 8, Size: 100})
	require.NoError(t, err)
	require.Equal(t, []byte("89"), last.Data)
	require.True(t, last.Eof)
}
