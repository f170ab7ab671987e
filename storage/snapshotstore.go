package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// SnapshotStore persists periodic full-state snapshots, each keyed by the
// hash of the last envelope applied before it was taken. A node that falls
// far behind the gossip network fetches the newest snapshot instead of
// replaying the entire event log from genesis (see gossip's snapshot
// chunk transfer).
type SnapshotStore struct {
	db *leveldb.DB
}

const latestSnapshotKey = "latest"

// OpenSnapshotStore opens (creating if absent) a LevelDB-backed snapshot
// store at dir. It is a distinct database from the event log so the two
// can be compacted, backed up, or pruned independently.
func OpenSnapshotStore(dir string) (*SnapshotStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error { return s.db.Close() }

// Put stores the JSON-encoded snapshot bytes keyed by the hash of the last
// envelope applied before it was taken, and records it as the latest.
func (s *SnapshotStore) Put(lastAppliedHash string, data []byte) error {
	batch := new(leveldb.Batch)
	batch.Put([]byte("s:"+lastAppliedHash), data)
	batch.Put([]byte(latestSnapshotKey), []byte(lastAppliedHash))
	return s.db.Write(batch, nil)
}

// Get returns the snapshot stored for lastAppliedHash.
func (s *SnapshotStore) Get(lastAppliedHash string) ([]byte, error) {
	v, err := s.db.Get([]byte("s:"+lastAppliedHash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

// Latest returns the most recently stored snapshot, if any.
func (s *SnapshotStore) Latest() (hash string, data []byte, err error) {
	hashBytes, err := s.db.Get([]byte(latestSnapshotKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	data, err = s.Get(string(hashBytes))
	return string(hashBytes), data, err
}
