package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("storage: not found")

// EventLog persists the caller-supplied bytes of every applied envelope
// (the Relay stores each envelope's JSON encoding), indexed by its own hash
// (the primary record), by issuer/type-family/nonce (so a node can answer
// "what did X send next"), by global append order (for range-sync), and,
// when the caller names one, by resource (so a node can walk one resource's
// causal chain without replaying the whole log). It is append-only: nothing
// here ever deletes or rewrites a prior entry, matching the protocol's own
// event-sourced model.
type EventLog struct {
	db *leveldb.DB
}

// OpenEventLog opens (creating if absent) a LevelDB-backed event log at dir.
func OpenEventLog(dir string) (*EventLog, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open event log: %w", err)
	}
	return &EventLog{db: db}, nil
}

func (l *EventLog) Close() error { return l.db.Close() }

const (
	prefixByHash     = "h:"
	prefixByNonce    = "n:" // issuer\x00family\x00nonce(big-endian uint64) -> hash
	prefixByResource = "r:" // resource\x00seq(big-endian uint64) -> hash
	prefixBySeq      = "g:" // global append order: seq(big-endian uint64) -> hash
	prefixSeqOfHash  = "q:" // hash -> seq(big-endian uint64), the inverse of prefixBySeq
	keyGlobalCounter = "seq"
)

// Append stores canonicalBytes under hash and indexes it by (issuer,
// family, nonce), by global append order, and, when resource is non-empty,
// by resource order.
func (l *EventLog) Append(hash string, canonicalBytes []byte, issuer, family string, nonce uint64, resource string) error {
	seq, err := l.nextGlobalSeq()
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(prefixByHash+hash), canonicalBytes)

	nonceKey := prefixByNonce + issuer + "\x00" + family + "\x00"
	var nonceSuffix [8]byte
	binary.BigEndian.PutUint64(nonceSuffix[:], nonce)
	batch.Put([]byte(nonceKey+string(nonceSuffix[:])), []byte(hash))

	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	batch.Put([]byte(prefixBySeq+string(seqBytes[:])), []byte(hash))
	batch.Put([]byte(prefixSeqOfHash+hash), seqBytes[:])
	batch.Put([]byte(keyGlobalCounter), seqBytes[:])

	if resource != "" {
		rseq, err := l.nextResourceSeq(resource)
		if err != nil {
			return err
		}
		var rseqSuffix [8]byte
		binary.BigEndian.PutUint64(rseqSuffix[:], rseq)
		batch.Put([]byte(prefixByResource+resource+"\x00"+string(rseqSuffix[:])), []byte(hash))
	}
	return l.db.Write(batch, nil)
}

func (l *EventLog) nextGlobalSeq() (uint64, error) {
	v, err := l.db.Get([]byte(keyGlobalCounter), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v) + 1, nil
}

func (l *EventLog) nextResourceSeq(resource string) (uint64, error) {
	it := l.db.NewIterator(util.BytesPrefix([]byte(prefixByResource+resource+"\x00")), nil)
	defer it.Release()
	var count uint64
	for it.Next() {
		count++
	}
	return count, it.Error()
}

// Get returns the bytes stored for the envelope with the given hash.
func (l *EventLog) Get(hash string) ([]byte, error) {
	v, err := l.db.Get([]byte(prefixByHash+hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

// ResourceHistory returns the hashes of every envelope that mutated
// resource, in application order.
func (l *EventLog) ResourceHistory(resource string) ([]string, error) {
	it := l.db.NewIterator(util.BytesPrefix([]byte(prefixByResource+resource+"\x00")), nil)
	defer it.Release()
	var hashes []string
	for it.Next() {
		hashes = append(hashes, string(it.Value()))
	}
	return hashes, it.Error()
}

// GlobalRangeSince returns up to limit envelope hashes applied strictly
// after fromHash, in application order, plus whether the end of the log was
// reached. An empty fromHash starts from genesis. It answers gossip's
// range-sync request, which names a checkpoint by hash rather than by any
// one issuer's nonce.
func (l *EventLog) GlobalRangeSince(fromHash string, limit int) (hashes []string, eof bool, err error) {
	var after uint64
	hasAfter := false
	if fromHash != "" {
		seqBytes, err := l.db.Get([]byte(prefixSeqOfHash+fromHash), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, true, ErrNotFound
		}
		if err != nil {
			return nil, false, err
		}
		after = binary.BigEndian.Uint64(seqBytes)
		hasAfter = true
	}

	it := l.db.NewIterator(util.BytesPrefix([]byte(prefixBySeq)), nil)
	defer it.Release()
	for it.Next() {
		key := it.Key()
		seq := binary.BigEndian.Uint64(key[len(prefixBySeq):])
		if hasAfter && seq <= after {
			continue
		}
		hashes = append(hashes, string(it.Value()))
		if limit > 0 && len(hashes) >= limit {
			return hashes, false, it.Error()
		}
	}
	return hashes, true, it.Error()
}

// RangeSince returns up to limit envelope hashes for issuer/family with
// nonce strictly greater than afterNonce, in nonce order. Gossip range-sync
// requests are answered by GlobalRangeSince instead.
func (l *EventLog) RangeSince(issuer, family string, afterNonce uint64, limit int) ([]string, error) {
	prefix := []byte(prefixByNonce + issuer + "\x00" + family + "\x00")
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var hashes []string
	for it.Next() {
		key := it.Key()
		nonce := binary.BigEndian.Uint64(key[len(key)-8:])
		if nonce <= afterNonce {
			continue
		}
		hashes = append(hashes, string(it.Value()))
		if limit > 0 && len(hashes) >= limit {
			break
		}
	}
	return hashes, it.Error()
}
