package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestEventLog(t *testing.T) *EventLog {
	t.Helper()
	log, err := OpenEventLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestEventLogAppendAndGet(t *testing.T) {
	log := openTestEventLog(t)

	require.NoError(t, log.Append("hash-1", []byte("envelope-1"), "did:claw:alice", "wallet.transfer", 1, "wallet.balance:did:claw:alice"))

	got, err := log.Get("hash-1")
	require.NoError(t, err)
	require.Equal(t, []byte("envelope-1"), got)

	_, err = log.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEventLogResourceHistoryPreservesOrder(t *testing.T) {
	log := openTestEventLog(t)
	resource := "wallet.balance:did:claw:alice"

	require.NoError(t, log.Append("hash-1", []byte("one"), "did:claw:alice", "wallet.transfer", 1, resource))
	require.NoError(t, log.Append("hash-2", []byte("two"), "did:claw:alice", "wallet.transfer", 2, resource))
	require.NoError(t, log.Append("hash-3", []byte("three"), "did:claw:alice", "wallet.transfer", 3, resource))

	hashes, err := log.ResourceHistory(resource)
	require.NoError(t, err)
	require.Equal(t, []string{"hash-1", "hash-2", "hash-3"}, hashes)
}

func TestEventLogRangeSinceByNonce(t *testing.T) {
	log := openTestEventLog(t)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, log.Append("hash-"+string(rune('0'+i)), []byte("payload"), "did:claw:alice", "wallet.transfer", i, ""))
	}

	hashes, err := log.RangeSince("did:claw:alice", "wallet.transfer", 2, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"hash-3", "hash-4"}, hashes)
}

func TestEventLogGlobalRangeSinceFromGenesis(t *testing.T) {
	log := openTestEventLog(t)

	require.NoError(t, log.Append("hash-a", []byte("a"), "did:claw:alice", "wallet.transfer", 1, ""))
	require.NoError(t, log.Append("hash-b", []byte("b"), "did:claw:bob", "wallet.transfer", 1, ""))
	require.NoError(t, log.Append("hash-c", []byte("c"), "did:claw:alice", "wallet.transfer", 2, ""))

	hashes, eof, err := log.GlobalRangeSince("", 0)
	require.NoError(t, err)
	require.True(t, eof)
	require.Equal(t, []string{"hash-a", "hash-b", "hash-c"}, hashes)
}

func TestEventLogGlobalRangeSinceFromCheckpoint(t *testing.T) {
	log := openTestEventLog(t)

	require.NoError(t, log.Append("hash-a", []byte("a"), "did:claw:alice", "wallet.transfer", 1, ""))
	require.NoError(t, log.Append("hash-b", []byte("b"), "did:claw:bob", "wallet.transfer", 1, ""))
	require.NoError(t, log.Append("hash-c", []byte("c"), "did:claw:alice", "wallet.transfer", 2, ""))

	hashes, eof, err := log.GlobalRangeSince("hash-a", 1)
	require.NoError(t, err)
	require.False(t, eof)
	require.Equal(t, []string{"hash-b"}, hashes)
}

func TestEventLogGlobalRangeSinceUnknownCheckpoint(t *testing.T) {
	log := openTestEventLog(t)
	require.NoError(t, log.Append("hash-a", []byte("a"), "did:claw:alice", "wallet.transfer", 1, ""))

	_, _, err := log.GlobalRangeSince("does-not-exist", 10)
	require.ErrorIs(t, err, ErrNotFound)
}
