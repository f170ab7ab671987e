// Package gossip defines the wire types peers exchange to propagate
// envelopes, resync missed ranges, and transfer snapshots to a peer too far
// behind to catch up from the event log alone. Framing and peer discovery
// are out of scope here: a Transport implementation supplies them.
package gossip

import (
	ctypes "github.com/clawnet/clawnet/core/types"
)

// Topic partitions gossip traffic by subsystem so a peer can subscribe to
// only the event families it cares about.
type Topic string

const (
	TopicIdentity   Topic = "identity"
	TopicWallet     Topic = "wallet"
	TopicMarket     Topic = "market"
	TopicContract   Topic = "contract"
	TopicReputation Topic = "reputation"
	TopicDAO        Topic = "dao"
)

// TopicFor maps an event type family to the topic it's gossiped on.
func TopicFor(family string) Topic {
	switch {
	case len(family) >= 8 && family[:8] == "identity":
		return TopicIdentity
	case len(family) >= 6 && family[:6] == "wallet":
		return TopicWallet
	case len(family) >= 6 && family[:6] == "market":
		return TopicMarket
	case len(family) >= 8 && family[:8] == "contract":
		return TopicContract
	case len(family) >= 10 && family[:10] == "reputation":
		return TopicReputation
	case len(family) >= 3 && family[:3] == "dao":
		return TopicDAO
	default:
		return Topic(family)
	}
}

// P2PEnvelope is the wire wrapper every gossiped message travels in,
// distinct from ctypes.Envelope (the signed protocol event it usually
// carries): it adds transport-level framing the protocol event itself
// doesn't need.
type P2PEnvelope struct {
	V           int    `json:"v"`
	Topic       Topic  `json:"topic"`
	Sender      string `json:"sender"` // gossip-layer peer id, not a protocol DID
	Ts          int64  `json:"ts"`
	ContentType string `json:"contentType"` // "event", "rangeSyncRequest", "rangeSyncResponse", "snapshotChunkRequest", "snapshotChunkResponse"
	Payload     []byte `json:"payload"`
	Sig         string `json:"sig"` // transport-level signature over the rest of the fields, keyed on Sender's peer key
}

// RangeSyncRequest asks a peer for every envelope it has applied after
// fromHash was applied, up to limit results, for catching up on a short gap
// without a full snapshot transfer.
type RangeSyncRequest struct {
	FromHash string `json:"fromHash"`
	Limit    int    `json:"limit"`
}

// RangeSyncResponse carries the envelopes a RangeSyncRequest asked for, in
// application order. Eof is true when the responder has no more envelopes
// after the last one returned.
type RangeSyncResponse struct {
	Envelopes []*ctypes.Envelope `json:"envelopes"`
	Eof       bool               `json:"eof"`
}

// SnapshotChunkRequest asks for one chunk of a peer's latest snapshot,
// identified by its hash (the hash of the last envelope applied before it
// was taken) and a byte offset, for resuming an interrupted transfer.
type SnapshotChunkRequest struct {
	SnapshotHash string `json:"snapshotHash"`
	Offset       int64  `json:"offset"`
	Size         int64  `json:"size"`
}

// SnapshotChunkResponse carries one chunk of snapshot data. Eof is true
// when this chunk reaches the end of the snapshot.
type SnapshotChunkResponse struct {
	Data []byte `json:"data"`
	Eof  bool   `json:"eof"`
}

// Transport abstracts peer framing and delivery so gossip logic can be
// tested without a real network. An implementation is responsible for peer
// discovery, connection management, and message framing; gossip only asks
// it to deliver bytes to a topic's subscribers or a specific peer.
type Transport interface {
	Broadcast(topic Topic, payload []byte) error
	SendTo(peerID string, payload []byte) error
	Subscribe(topic Topic) (<-chan []byte, error)
}
