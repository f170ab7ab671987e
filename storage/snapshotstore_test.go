package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestSnapshotStore(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := OpenSnapshotStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSnapshotStorePutGetLatest(t *testing.T) {
	store := openTestSnapshotStore(t)

	_, _, err := store.Latest()
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put("hash-1", []byte("snapshot-1")))
	require.NoError(t, store.Put("hash-2", []byte("snapshot-2")))

	data, err := store.Get("hash-1")
	require.NoError(t, err)
	require.Equal(t, []byte("snapshot-1"), data)

	hash, data, err := store.Latest()
	require.NoError(t, err)
	require.Equal(t, "hash-2", hash)
	require.Equal(t, []byte("snapshot-2"), data)
}
