// Package engine implements the validate-apply pipeline binding the six
// reducer packages together: schema, hash, signature, nonce and
// resource-chain validation, then dispatch to the reducer (or pair of
// reducers) the event type names. No reducer package imports another;
// every cross-subsystem effect (escrow release on milestone approval,
// reputation reference resolution, DAO voting power, atomic contract+order
// creation on task-bid-accept) is orchestrated here instead.
package engine

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clawnet/clawnet/contracts"
	cerrors "github.com/clawnet/clawnet/core/errors"
	"github.com/clawnet/clawnet/core/state"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/crypto"
	"github.com/clawnet/clawnet/dao"
	"github.com/clawnet/clawnet/identity"
	"github.com/clawnet/clawnet/markets"
	"github.com/clawnet/clawnet/observability"
	"github.com/clawnet/clawnet/observability/otel"
	"github.com/clawnet/clawnet/reputation"
	"github.com/clawnet/clawnet/wallet"
)

// ValidateAndApply runs the six-step pipeline against store and, on
// success, commits the reducer's effect and advances the nonce and
// resource-chain ledgers. Callers (the local API boundary or the gossip
// receive path) must not call this concurrently for the same store; the
// store's lock only protects its own bookkeeping from concurrent readers
// taking a Snapshot, not from concurrent writers. Every call opens one
// trace span and records the outcome in the engine and events metrics
// registries.
func ValidateAndApply(ctx context.Context, s *state.Store, env *ctypes.Envelope) error {
	family := ctypes.TypeFamily(env.Type)
	start := time.Now()

	_, span := otel.StartSpan(ctx, "clawnet.engine.validate_apply")
	span.SetAttributes(attribute.String("clawnet.event.type", env.Type))
	defer span.End()

	err := validateAndApply(s, env)

	observability.EngineMetrics().Observe(family, time.Since(start))
	if err != nil {
		kind := "unknown"
		if ce, ok := cerrors.As(err); ok {
			kind = string(ce.Kind)
		}
		observability.Events().RecordRejected(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		logRejection(env, kind, err)
		return err
	}
	observability.Events().RecordApplied(env.Type)
	return nil
}

// logRejection emits the warn/error-level structured line every rejected
// envelope gets: hash, issuer, kind, never the payload. Structural and
// ordering kinds log at error (they indicate a malformed or out-of-sync
// sender); precondition and semantic kinds log at warn (an otherwise
// well-formed envelope that the current state can't accept).
func logRejection(env *ctypes.Envelope, kind string, err error) {
	attrs := []any{
		slog.String("hash", env.Hash),
		slog.String("issuer", env.Issuer),
		slog.String("type", env.Type),
		slog.String("kind", kind),
		slog.Any("error", err),
	}
	switch cerrors.Kind(kind) {
	case cerrors.KindSchemaInvalid, cerrors.KindHashMismatch, cerrors.KindBadSignature,
		cerrors.KindCanonicalizationMismatch, cerrors.KindUnknownIssuer, cerrors.KindNonceOutOfOrder,
		cerrors.KindResourcePrevMismatch, cerrors.KindDuplicateEvent, cerrors.KindTimeout:
		slog.Error("envelope rejected", attrs...)
	default:
		slog.Warn("envelope rejected", attrs...)
	}
}

func validateAndApply(s *state.Store, env *ctypes.Envelope) error {
	s.Lock()
	defer s.Unlock()

	if env.V != ctypes.SchemaVersion {
		return cerrors.New(cerrors.KindSchemaInvalid, "unsupported schema version")
	}
	if env.Type == "" || env.Issuer == "" {
		return cerrors.New(cerrors.KindSchemaInvalid, "type and issuer are required")
	}

	wantHash, err := env.ComputeHash()
	if err != nil {
		return cerrors.Wrap(cerrors.KindHashMismatch, "compute canonical hash", err)
	}
	if wantHash != env.Hash {
		return cerrors.New(cerrors.KindHashMismatch, "envelope hash does not match its canonical bytes")
	}

	if s.HasApplied(env.Hash) {
		return nil // idempotent: duplicate delivery is a silent no-op.
	}

	pub, err := resolveIssuerKey(s, env)
	if err != nil {
		return err
	}
	sigBytes, err := hex.DecodeString(env.Sig)
	if err != nil {
		return cerrors.New(cerrors.KindBadSignature, "malformed signature encoding")
	}
	if !pub.Verify([]byte(env.Hash), sigBytes) {
		return cerrors.New(cerrors.KindBadSignature, "signature does not verify against issuer's auth key")
	}

	family := ctypes.TypeFamily(env.Type)
	nonceKey := ctypes.NonceKey{Issuer: env.Issuer, Family: family}
	want := uint64(1)
	if last, ok := s.LastNonce(nonceKey); ok {
		want = last + 1
	}
	if env.Nonce != want {
		return cerrors.New(cerrors.KindNonceOutOfOrder, fmt.Sprintf("expected nonce %d, got %d", want, env.Nonce))
	}

	resource, err := resourceFor(env)
	if err != nil {
		return err
	}
	if resource != "" {
		lastHash, mutated := s.LastResourceHash(resource)
		if env.ResourcePrev == "" {
			if mutated {
				return cerrors.New(cerrors.KindResourcePrevMismatch, "resource already has prior history")
			}
		} else if !mutated || lastHash != env.ResourcePrev {
			return cerrors.New(cerrors.KindResourcePrevMismatch, "resourcePrev does not match the resource's last mutation")
		}
	}

	if err := dispatch(s, env); err != nil {
		return err
	}

	s.SetNonce(nonceKey, env.Nonce)
	if resource != "" {
		s.SetResourceHash(resource, env.Hash)
	}
	s.MarkApplied(env.Hash)
	return nil
}

// resolveIssuerKey resolves the public key that must have signed env.
// identity.create is the bootstrap case: there is no prior state naming the
// issuer, so the key is taken from the document embedded in the payload
// itself, and ApplyCreate separately verifies that document's DID is
// actually derived from that key.
func resolveIssuerKey(s *state.Store, env *ctypes.Envelope) (*crypto.PublicKey, error) {
	if env.Type == "identity.create" {
		var p identity.CreatePayload
		if err := env.DecodePayload(&p); err != nil {
			return nil, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
		}
		keyBytes, err := hex.DecodeString(p.Document.AuthPublicKey)
		if err != nil {
			return nil, cerrors.New(cerrors.KindUnknownIssuer, "malformed auth public key")
		}
		return crypto.PublicKeyFromBytes(keyBytes)
	}
	hexKey, ok := s.Identities.AuthPublicKeyHex(env.Issuer)
	if !ok {
		return nil, cerrors.New(cerrors.KindUnknownIssuer, "issuer has no registered identity")
	}
	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, cerrors.New(cerrors.KindUnknownIssuer, "malformed stored auth public key")
	}
	return crypto.PublicKeyFromBytes(keyBytes)
}

// resourceFor peeks the minimum fields of env's payload needed to compute
// its causal-chain resource key, without fully decoding into the reducer's
// own payload type. An empty return means this event type is not chained
// (reputation records are one-shot facts keyed by their own hash; treasury
// deposits are not modeled as a single linearizable resource).
func resourceFor(env *ctypes.Envelope) (string, error) {
	peek := func(dst interface{}) error {
		if err := env.DecodePayload(dst); err != nil {
			return cerrors.New(cerrors.KindSchemaInvalid, err.Error())
		}
		return nil
	}
	switch env.Type {
	case "identity.create", "identity.update", "identity.platform.link", "identity.capability.register":
		return identity.Resource(env.Issuer), nil

	case "wallet.transfer":
		return wallet.BalanceResource(env.Issuer), nil
	case "wallet.escrow.create", "wallet.escrow.fund", "wallet.escrow.release", "wallet.escrow.refund":
		var p struct {
			ID       string `json:"id"`
			EscrowID string `json:"escrowId"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		id := p.ID
		if id == "" {
			id = p.EscrowID
		}
		return wallet.EscrowResource(id), nil

	case "market.listing.publish", "market.listing.update":
		var p struct {
			ID string `json:"id"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return markets.ListingResource(p.ID), nil
	case "market.order.create", "market.order.update":
		var p struct {
			ID string `json:"id"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return markets.OrderResource(p.ID), nil
	case "market.bid.place":
		var p struct {
			ID        string `json:"id"`
			ListingID string `json:"listingId"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return markets.BidResource(p.ListingID, p.ID), nil
	case "market.task.bid.accept":
		var p markets.TaskBidAcceptPayload
		if err := peek(&p); err != nil {
			return "", err
		}
		return markets.ListingResource(p.ListingID), nil
	case "market.capability.lease":
		var p struct {
			ID string `json:"id"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return markets.LeaseResource(p.ID), nil
	case "market.capability.usage":
		var p markets.CapabilityUsagePayload
		if err := peek(&p); err != nil {
			return "", err
		}
		return markets.LeaseResource(p.LeaseID), nil
	case "market.dispute.open", "market.dispute.resolve":
		var p struct {
			OrderID string `json:"orderId"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return markets.OrderResource(p.OrderID), nil

	case "contract.create":
		var p contracts.CreatePayload
		if err := peek(&p); err != nil {
			return "", err
		}
		return contracts.Resource(p.ID), nil
	case "contract.sign", "contract.activate", "contract.dispute.open", "contract.dispute.resolve",
		"contract.settlement.execute", "contract.terminate":
		var p struct {
			ContractID string `json:"contractId"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return contracts.Resource(p.ContractID), nil
	case "contract.milestone.submit", "contract.milestone.approve", "contract.milestone.reject":
		var p struct {
			ContractID  string `json:"contractId"`
			MilestoneID string `json:"milestoneId"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return contracts.MilestoneResource(p.ContractID, p.MilestoneID), nil

	case "reputation.record":
		return reputation.Resource(env.Hash), nil

	case "dao.proposal.create", "dao.proposal.advance", "dao.vote.cast":
		var p struct {
			ID         string `json:"id"`
			ProposalID string `json:"proposalId"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		id := p.ID
		if id == "" {
			id = p.ProposalID
		}
		return dao.ProposalResource(id), nil
	case "dao.delegate.set", "dao.delegate.revoke":
		var p struct {
			Delegate string `json:"delegate"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return dao.DelegationResource(env.Issuer, p.Delegate), nil
	case "dao.timelock.queue", "dao.timelock.execute", "dao.timelock.cancel":
		var p struct {
			ID string `json:"id"`
		}
		if err := peek(&p); err != nil {
			return "", err
		}
		return dao.TimelockResource(p.ID), nil
	case "dao.treasury.deposit":
		return "", nil

	default:
		return "", cerrors.New(cerrors.KindSchemaInvalid, "unknown event type "+env.Type)
	}
}

// VotingPowerResolver supplies the ambient facts dispatch needs to compute a
// voter's effective power at cast time. Vote-cast dispatch builds one from
// the store with DefaultVotingPowerResolver. LockupDurationMs is always 0 until a governance
// lock event type exists (see DESIGN.md).
type VotingPowerResolver func(voter string, ptype dao.ProposalType, now int64) dao.VoterInputs

// DefaultVotingPowerResolver builds a VotingPowerResolver from a store's
// current wallet/reputation/DAO state: balance and locked-governance tokens
// come from wallet, reputation score from the reputation engine, and
// delegated shares from the DAO delegation graph.
func DefaultVotingPowerResolver(s *state.Store) VotingPowerResolver {
	return func(voter string, ptype dao.ProposalType, now int64) dao.VoterInputs {
		bal := s.Wallet.BalanceOf(voter)
		profile := reputation.Derive(s.Reputation, voter, now)
		basePowerOf := func(addr string) int64 {
			b := s.Wallet.BalanceOf(addr)
			addrProfile := reputation.Derive(s.Reputation, addr, now)
			return dao.BasePower(dao.VoterInputs{
				Balance:          b.Available.Int().Int64(),
				LockedTokens:     b.LockedGovernance.Int().Int64(),
				LockupDurationMs: 0,
				ReputationScore:  addrProfile.OverallScore,
			})
		}
		shares := dao.ResolveDelegatedShares(s.DAO, ptype, now, basePowerOf)
		return dao.VoterInputs{
			Balance:                 bal.Available.Int().Int64(),
			LockedTokens:            bal.LockedGovernance.Int().Int64(),
			LockupDurationMs:        0,
			ReputationScore:         profile.OverallScore,
			OutgoingDelegatedShares: dao.OutgoingTotal(shares, voter),
			IncomingDelegatedShares: dao.IncomingTotal(shares, voter),
		}
	}
}

// dispatch applies env to the reducer(s) its type names, mutating s in
// place. Every branch has already passed schema/hash/signature/nonce/
// resource-chain validation; remaining failures are reducer preconditions.
func dispatch(s *state.Store, env *ctypes.Envelope) error {
	now := env.Ts
	issuer := env.Issuer
	payload := []byte(env.Payload)

	switch env.Type {
	// Identity
	case "identity.create":
		next, err := identity.ApplyCreate(s.Identities, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Identities = next
		return nil
	case "identity.update":
		next, err := identity.ApplyUpdate(s.Identities, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Identities = next
		return nil
	case "identity.platform.link":
		next, err := identity.ApplyPlatformLink(s.Identities, issuer, payload, now, resolveKeyFunc(s))
		if err != nil {
			return err
		}
		s.Identities = next
		return nil
	case "identity.capability.register":
		next, err := identity.ApplyCapabilityRegister(s.Identities, issuer, payload, now, resolveKeyFunc(s))
		if err != nil {
			return err
		}
		s.Identities = next
		return nil

	// Wallet
	case "wallet.transfer":
		next, err := wallet.ApplyTransfer(s.Wallet, issuer, payload)
		if err != nil {
			return err
		}
		s.Wallet = next
		return nil
	case "wallet.escrow.create":
		next, err := wallet.ApplyEscrowCreate(s.Wallet, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Wallet = next
		return nil
	case "wallet.escrow.fund":
		next, err := wallet.ApplyEscrowFund(s.Wallet, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Wallet = next
		return nil
	case "wallet.escrow.release":
		checker := milestoneCheckerFor(s)
		next, err := wallet.ApplyEscrowRelease(s.Wallet, issuer, payload, now, checker)
		if err != nil {
			return err
		}
		s.Wallet = next
		return nil
	case "wallet.escrow.refund":
		next, err := wallet.ApplyEscrowRefund(s.Wallet, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Wallet = next
		return nil

	// Markets
	case "market.listing.publish":
		next, err := markets.ApplyListingPublish(s.Markets, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Markets = next
		return nil
	case "market.listing.update":
		next, err := markets.ApplyListingUpdate(s.Markets, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Markets = next
		return nil
	case "market.order.create":
		next, err := markets.ApplyOrderCreate(s.Markets, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Markets = next
		return nil
	case "market.order.update":
		next, attached, err := markets.ApplyOrderUpdate(s.Markets, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Markets = next
		if attached != nil {
			return recordReputationFromReview(s, env, attached)
		}
		return nil
	case "market.bid.place":
		next, err := markets.ApplyBidPlace(s.Markets, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Markets = next
		return nil
	case "market.task.bid.accept":
		return applyTaskBidAccept(s, env)
	case "market.capability.lease":
		next, err := markets.ApplyCapabilityLease(s.Markets, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Markets = next
		return nil
	case "market.capability.usage":
		nextM, nextW, err := markets.ApplyCapabilityUsage(s.Markets, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Markets, s.Wallet = nextM, nextW
		return nil
	case "market.dispute.open":
		nextM, nextW, err := markets.ApplyDisputeOpen(s.Markets, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Markets, s.Wallet = nextM, nextW
		return nil
	case "market.dispute.resolve":
		nextM, nextW, err := markets.ApplyDisputeResolve(s.Markets, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Markets, s.Wallet = nextM, nextW
		return nil

	// Contracts
	case "contract.create":
		next, err := contracts.ApplyCreate(s.Contracts, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Contracts = next
		return nil
	case "contract.sign":
		next, err := contracts.ApplySign(s.Contracts, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Contracts = next
		return nil
	case "contract.activate":
		next, err := contracts.ApplyActivate(s.Contracts, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Contracts = next
		return nil
	case "contract.milestone.submit":
		next, err := contracts.ApplyMilestoneSubmit(s.Contracts, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Contracts = next
		return nil
	case "contract.milestone.approve":
		nextC, nextW, err := contracts.ApplyMilestoneApprove(s.Contracts, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Contracts, s.Wallet = nextC, nextW
		return nil
	case "contract.milestone.reject":
		next, err := contracts.ApplyMilestoneReject(s.Contracts, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Contracts = next
		return nil
	case "contract.dispute.open":
		nextC, nextW, err := contracts.ApplyDisputeOpen(s.Contracts, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Contracts, s.Wallet = nextC, nextW
		return nil
	case "contract.dispute.resolve":
		nextC, nextW, err := contracts.ApplyDisputeResolve(s.Contracts, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Contracts, s.Wallet = nextC, nextW
		return nil
	case "contract.settlement.execute":
		nextC, nextW, err := contracts.ApplySettlementExecute(s.Contracts, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.Contracts, s.Wallet = nextC, nextW
		return nil
	case "contract.terminate":
		next, err := contracts.ApplyTerminate(s.Contracts, issuer, payload, now)
		if err != nil {
			return err
		}
		s.Contracts = next
		return nil

	// Reputation
	case "reputation.record":
		resolver := referenceResolverFor(s)
		next, err := reputation.ApplyRecord(s.Reputation, issuer, payload, now, env.Hash, resolver)
		if err != nil {
			return err
		}
		s.Reputation = next
		return nil

	// DAO
	case "dao.proposal.create":
		next, err := dao.ApplyProposalCreate(s.DAO, issuer, payload, now)
		if err != nil {
			return err
		}
		s.DAO = next
		return nil
	case "dao.proposal.advance":
		votable := totalVotableSupply(s)
		next, err := dao.ApplyProposalAdvance(s.DAO, issuer, payload, now, votable)
		if err != nil {
			return err
		}
		s.DAO = next
		return nil
	case "dao.vote.cast":
		return applyVoteCast(s, issuer, payload, now)
	case "dao.delegate.set":
		next, err := dao.ApplyDelegateSet(s.DAO, issuer, payload, now)
		if err != nil {
			return err
		}
		s.DAO = next
		return nil
	case "dao.delegate.revoke":
		next, err := dao.ApplyDelegateRevoke(s.DAO, issuer, payload, now)
		if err != nil {
			return err
		}
		s.DAO = next
		return nil
	case "dao.timelock.queue":
		next, err := dao.ApplyTimelockQueue(s.DAO, issuer, payload, now)
		if err != nil {
			return err
		}
		s.DAO = next
		return nil
	case "dao.timelock.execute":
		nextD, nextW, err := dao.ApplyTimelockExecute(s.DAO, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.DAO, s.Wallet = nextD, nextW
		return nil
	case "dao.timelock.cancel":
		next, err := dao.ApplyTimelockCancel(s.DAO, issuer, payload, now)
		if err != nil {
			return err
		}
		s.DAO = next
		return nil
	case "dao.treasury.deposit":
		nextD, nextW, err := dao.ApplyTreasuryDeposit(s.DAO, issuer, payload, now, s.Wallet)
		if err != nil {
			return err
		}
		s.DAO, s.Wallet = nextD, nextW
		return nil

	default:
		return cerrors.New(cerrors.KindSchemaInvalid, "unknown event type "+env.Type)
	}
}

func resolveKeyFunc(s *state.Store) func(did string) (*crypto.PublicKey, bool) {
	return func(did string) (*crypto.PublicKey, bool) {
		hexKey, ok := s.Identities.AuthPublicKeyHex(did)
		if !ok {
			return nil, false
		}
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, false
		}
		pub, err := crypto.PublicKeyFromBytes(keyBytes)
		if err != nil {
			return nil, false
		}
		return pub, true
	}
}

func milestoneCheckerFor(s *state.Store) wallet.MilestoneChecker {
	return func(contractID, milestoneID string) bool {
		return s.Contracts.MilestoneApproved(contractID, milestoneID)
	}
}

func referenceResolverFor(s *state.Store) reputation.ReferenceResolver {
	return func(reference string) bool {
		if s.Markets.OrderCompleted(reference) {
			return true
		}
		if c, ok := s.Contracts.Get(reference); ok {
			return c.Status == contracts.StatusCompleted
		}
		if lease, ok := s.Markets.Leases[reference]; ok {
			return !lease.Active && lease.QuotaUsed > 0
		}
		return false
	}
}

// recordReputationFromReview synthesizes the reputation.record effect an
// order review triggers, applied within the same dispatch step as the
// order.update event that attached it so replay stays deterministic: both
// mutations derive from the same envelope hash and timestamp.
func recordReputationFromReview(s *state.Store, env *ctypes.Envelope, attached *markets.ReviewAttached) error {
	recordPayload, err := json.Marshal(reputation.RecordPayload{
		Target:    attached.Target,
		Dimension: reputation.DimensionQuality,
		Score:     attached.Rating * 200, // map 1-5 stars onto the 0-1000 score range
		Reference: attached.OrderID,
	})
	if err != nil {
		return cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal derived reputation record", err)
	}
	resolver := referenceResolverFor(s)
	next, err := reputation.ApplyRecord(s.Reputation, attached.Reviewer, recordPayload, env.Ts, env.Hash+":review", resolver)
	if err != nil {
		return err
	}
	s.Reputation = next
	return nil
}

// applyTaskBidAccept performs the one genuinely two-reducer effect in the
// protocol: it derives deterministic ids from the accept envelope's own
// hash, creates the contract first, then the order referencing it, per
// spec §4.4's required ordering, while keeping the markets and contracts
// packages themselves mutually independent.
func applyTaskBidAccept(s *state.Store, env *ctypes.Envelope) error {
	var p markets.TaskBidAcceptPayload
	if err := env.DecodePayload(&p); err != nil {
		return cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	listing, ok := s.Markets.Listings[p.ListingID]
	if !ok || listing.Task == nil {
		return cerrors.Precondition("market", "unknown task listing")
	}
	bid, ok := s.Markets.Bids[p.BidID]
	if !ok {
		return cerrors.Precondition("market", "unknown bid")
	}
	if p.ContractID == "" {
		p.ContractID = hex.EncodeToString(crypto.Hash([]byte(env.Hash + "contract"))[:])
	}
	if p.OrderID == "" {
		p.OrderID = hex.EncodeToString(crypto.Hash([]byte(env.Hash + "order"))[:])
	}

	createPayload, err := json.Marshal(contracts.CreatePayload{
		ID:              p.ContractID,
		Client:          listing.Seller,
		Provider:        bid.Bidder,
		RequiredSigners: []string{listing.Seller, bid.Bidder},
		Service:         listing.Title,
		TotalAmount:     bid.Amount,
		EscrowRequired:  true,
	})
	if err != nil {
		return cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal derived contract", err)
	}
	nextC, err := contracts.ApplyCreate(s.Contracts, listing.Seller, createPayload, env.Ts)
	if err != nil {
		return err
	}

	acceptPayload, err := json.Marshal(p)
	if err != nil {
		return cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal task bid accept", err)
	}
	nextM, err := markets.ApplyTaskBidAccept(s.Markets, env.Issuer, acceptPayload, env.Ts)
	if err != nil {
		return err
	}

	s.Contracts = nextC
	s.Markets = nextM
	return nil
}

// SweepExpiredEscrows walks every funded escrow and expires the ones whose
// deadline has passed as of now, taking the store's write lock for the
// duration. It is not driven by an envelope: cmd/clawnetd calls it on a
// ticker against wall-clock time, the same way the teacher's node runs its
// own periodic housekeeping passes. Returns the number of escrows expired.
func SweepExpiredEscrows(s *state.Store, now int64) int {
	s.Lock()
	defer s.Unlock()

	expired := 0
	for id, escrow := range s.Wallet.Escrows {
		if escrow.Status != wallet.EscrowFunded || escrow.ExpiresAt == 0 || now < escrow.ExpiresAt {
			continue
		}
		next, err := wallet.Expire(s.Wallet, id, now)
		if err != nil {
			slog.Warn("escrow expiry sweep failed", slog.String("escrowId", id), slog.Any("error", err))
			continue
		}
		s.Wallet = next
		expired++
	}
	return expired
}

// totalVotableSupply sums every address's available plus locked-governance
// balance, the denominator for quorum checks.
func totalVotableSupply(s *state.Store) int64 {
	var total int64
	for _, b := range s.Wallet.Balances {
		total += b.Available.Int().Int64() + b.LockedGovernance.Int().Int64()
	}
	return total
}

// applyVoteCast resolves the voter's effective power from wallet and
// reputation state and the delegation graph before recording the vote.
func applyVoteCast(s *state.Store, issuer string, payload []byte, now int64) error {
	var p struct {
		ProposalID string           `json:"proposalId"`
		Option     dao.VoteOption   `json:"option"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	proposal, ok := s.DAO.Proposals[p.ProposalID]
	if !ok {
		return cerrors.Precondition("dao", "unknown proposal")
	}
	inputs := DefaultVotingPowerResolver(s)(issuer, proposal.Type, now)
	next, err := dao.ApplyVoteCast(s.DAO, issuer, payload, now, inputs)
	if err != nil {
		return err
	}
	s.DAO = next
	return nil
}
