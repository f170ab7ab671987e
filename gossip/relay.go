package gossip

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clawnet/clawnet/core/engine"
	cerrors "github.com/clawnet/clawnet/core/errors"
	"github.com/clawnet/clawnet/core/state"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/ratelimit"
	"github.com/clawnet/clawnet/storage"
)

// Relay receives P2PEnvelopes from a Transport, validates and applies the
// protocol events they carry against a shared Store, persists every
// successfully applied envelope to the event log, and re-broadcasts it to
// the rest of the topic's subscribers. Peers are rate-limited individually
// so one noisy or malicious sender can't starve the validate-apply pipeline
// for everyone else.
type Relay struct {
	store     *state.Store
	log       *storage.EventLog
	transport Transport
	limiter   *ratelimit.PerKeyLimiter
}

// NewRelay constructs a Relay over the given store, event log, transport,
// and per-peer rate limiter.
func NewRelay(store *state.Store, log *storage.EventLog, transport Transport, limiter *ratelimit.PerKeyLimiter) *Relay {
	return &Relay{store: store, log: log, transport: transport, limiter: limiter}
}

// HandleInbound processes one P2PEnvelope received from the transport. It
// never returns an error for a rejected event (that's an expected outcome
// of a malicious or stale peer); it returns an error only for conditions
// the transport layer should itself act on, such as malformed framing.
func (r *Relay) HandleInbound(ctx context.Context, raw []byte) error {
	var p2p P2PEnvelope
	if err := json.Unmarshal(raw, &p2p); err != nil {
		return fmt.Errorf("gossip: malformed P2P envelope: %w", err)
	}
	if !r.limiter.Allow(p2p.Sender) {
		return nil
	}
	switch p2p.ContentType {
	case "event":
		return r.handleEvent(ctx, &p2p)
	default:
		// Range-sync and snapshot-chunk requests are not handled here;
		// Syncer answers them from the event log and snapshot store, and
		// the local API calls it directly.
		return nil
	}
}

func (r *Relay) handleEvent(ctx context.Context, p2p *P2PEnvelope) error {
	var env ctypes.Envelope
	if err := json.Unmarshal(p2p.Payload, &env); err != nil {
		return fmt.Errorf("gossip: malformed envelope payload: %w", err)
	}
	if err := r.apply(ctx, &env); err != nil {
		return nil // rejected; an expected outcome from a stale or malicious peer, not a transport error
	}
	out, err := json.Marshal(p2p)
	if err != nil {
		return fmt.Errorf("gossip: re-marshal for rebroadcast: %w", err)
	}
	return r.transport.Broadcast(p2p.Topic, out)
}

// Submit validates and applies an envelope originated by a local client
// (through the local API, not the gossip transport) and, on success,
// broadcasts it to the rest of the network. Unlike HandleInbound, the
// validation error is returned to the caller: a local client needs to know
// why its own submission was rejected. Local submissions are rate-limited
// per issuer DID.
func (r *Relay) Submit(ctx context.Context, env *ctypes.Envelope) error {
	if !r.limiter.Allow(env.Issuer) {
		return cerrors.New(cerrors.KindRateLimited, "submission rate limit exceeded for issuer")
	}
	if err := r.apply(ctx, env); err != nil {
		return err
	}
	p2p := P2PEnvelope{
		V:           1,
		Topic:       TopicFor(ctypes.TypeFamily(env.Type)),
		ContentType: "event",
	}
	var err error
	p2p.Payload, err = json.Marshal(env)
	if err != nil {
		return fmt.Errorf("gossip: marshal submitted envelope: %w", err)
	}
	out, err := json.Marshal(&p2p)
	if err != nil {
		return fmt.Errorf("gossip: marshal P2P wrapper: %w", err)
	}
	return r.transport.Broadcast(p2p.Topic, out)
}

// apply is the shared validate-apply-and-persist step behind both
// HandleInbound and Submit.
func (r *Relay) apply(ctx context.Context, env *ctypes.Envelope) error {
	if err := engine.ValidateAndApply(ctx, r.store, env); err != nil {
		return err
	}
	stored, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("gossip: marshal applied envelope: %w", err)
	}
	family := ctypes.TypeFamily(env.Type)
	if err := r.log.Append(env.Hash, stored, env.Issuer, family, env.Nonce, ""); err != nil {
		return fmt.Errorf("gossip: append to event log: %w", err)
	}
	return nil
}
