package gossip

import (
	"encoding/json"
	"fmt"

	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/storage"
)

// Syncer answers RangeSyncRequest and SnapshotChunkRequest messages from
// peers that fell behind, using the same event log and snapshot store the
// node's Relay writes to. It does not mutate state: every response is a
// read against already-applied, already-persisted data.
type Syncer struct {
	log       *storage.EventLog
	snapshots *storage.SnapshotStore
}

// NewSyncer constructs a Syncer over the given event log and snapshot
// store.
func NewSyncer(log *storage.EventLog, snapshots *storage.SnapshotStore) *Syncer {
	return &Syncer{log: log, snapshots: snapshots}
}

// AnswerRangeSync builds the response to a peer's RangeSyncRequest by
// decoding each recorded envelope (the JSON encoding the Relay appends to
// the event log) back into an Envelope.
func (s *Syncer) AnswerRangeSync(req RangeSyncRequest) (*RangeSyncResponse, error) {
	hashes, eof, err := s.log.GlobalRangeSince(req.FromHash, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("gossip: range sync lookup: %w", err)
	}
	envs := make([]*ctypes.Envelope, 0, len(hashes))
	for _, h := range hashes {
		raw, err := s.log.Get(h)
		if err != nil {
			return nil, fmt.Errorf("gossip: load envelope %s: %w", h, err)
		}
		var env ctypes.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("gossip: decode stored envelope %s: %w", h, err)
		}
		envs = append(envs, &env)
	}
	return &RangeSyncResponse{Envelopes: envs, Eof: eof}, nil
}

// AnswerSnapshotChunk builds the response to a peer's SnapshotChunkRequest,
// slicing the stored snapshot at the requested offset and size.
func (s *Syncer) AnswerSnapshotChunk(req SnapshotChunkRequest) (*SnapshotChunkResponse, error) {
	data, err := s.snapshots.Get(req.SnapshotHash)
	if err != nil {
		return nil, fmt.Errorf("gossip: load snapshot %s: %w", req.SnapshotHash, err)
	}
	start := req.Offset
	if start < 0 || start > int64(len(data)) {
		return nil, fmt.Errorf("gossip: snapshot chunk offset %d out of range", req.Offset)
	}
	end := start + req.Size
	if req.Size <= 0 || end > int64(len(data)) {
		end = int64(len(data))
	}
	return &SnapshotChunkResponse{
		Data: data[start:end],
		Eof:  end >= int64(len(data)),
	}, nil
}
