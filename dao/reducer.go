package dao

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/wallet"
)

const subsystem = "dao"

// ProposalCreatePayload is the body of a dao.proposal.create envelope.
type ProposalCreatePayload struct {
	ID          string       `json:"id"`
	Type        ProposalType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Action      Action       `json:"action"`
}

// ApplyProposalCreate drafts a new proposal.
func ApplyProposalCreate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p ProposalCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.ID == "" {
		return s, cerrors.Precondition(subsystem, "proposal id is required")
	}
	if _, exists := s.Proposals[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "proposal id already exists")
	}
	if _, ok := DefaultThresholds[p.Type]; !ok {
		return s, cerrors.Precondition(subsystem, "unknown proposal type")
	}
	s.Proposals[p.ID] = &Proposal{
		ID:             p.ID,
		Proposer:       issuer,
		Type:           p.Type,
		Title:          p.Title,
		Description:    p.Description,
		Action:         p.Action,
		Status:         ProposalDraft,
		PhaseEnteredAt: now,
		Votes:          make(map[string]Vote),
		ForPower:       ctypes.NewAmount(0),
		AgainstPower:   ctypes.NewAmount(0),
		AbstainPower:   ctypes.NewAmount(0),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s, nil
}

// ProposalAdvancePayload is the body of a dao.proposal.advance envelope.
type ProposalAdvancePayload struct {
	ID string `json:"id"`
	// VotableSupply is the total token supply eligible to vote, supplied by
	// the engine from wallet state at the moment quorum is checked.
	VotableSupply int64 `json:"-"`
}

var phaseOrder = []ProposalStatus{ProposalDraft, ProposalDiscussion, ProposalVoting, ProposalQueued}

// ApplyProposalAdvance moves a proposal to its next lifecycle phase. The
// preceding phase's window must have elapsed; the voting -> queued
// transition additionally requires quorum and pass thresholds to be met,
// using votableSupply as the denominator for quorum.
func ApplyProposalAdvance(s State, issuer string, payload []byte, now int64, votableSupply int64) (State, error) {
	var p ProposalAdvancePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	proposal, ok := s.Proposals[p.ID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown proposal")
	}
	thresholds := DefaultThresholds[proposal.Type]
	switch proposal.Status {
	case ProposalDraft:
		if now-proposal.PhaseEnteredAt < thresholds.DiscussionWindowMs && thresholds.DiscussionWindowMs > 0 {
			return s, cerrors.Precondition(subsystem, "discussion window has not elapsed")
		}
		clone := proposal.Clone()
		clone.Status = ProposalDiscussion
		clone.PhaseEnteredAt = now
		clone.UpdatedAt = now
		s.Proposals[p.ID] = clone
		return s, nil
	case ProposalDiscussion:
		clone := proposal.Clone()
		clone.Status = ProposalVoting
		clone.PhaseEnteredAt = now
		clone.UpdatedAt = now
		s.Proposals[p.ID] = clone
		return s, nil
	case ProposalVoting:
		if now-proposal.PhaseEnteredAt < thresholds.VotingWindowMs {
			return s, cerrors.Precondition(subsystem, "voting window has not elapsed")
		}
		total := addAmounts(proposal.ForPower, proposal.AgainstPower, proposal.AbstainPower)
		quorumMet := votableSupply <= 0 || total.Int().Int64()*100 >= votableSupply*int64(thresholds.QuorumPct)
		passed := false
		if quorumMet {
			forV := proposal.ForPower.Int().Int64()
			againstV := proposal.AgainstPower.Int().Int64()
			decisive := forV + againstV
			if decisive > 0 {
				passed = forV*100 >= decisive*int64(thresholds.PassPct)
			} else {
				passed = thresholds.PassPct == 0
			}
		}
		clone := proposal.Clone()
		clone.UpdatedAt = now
		if quorumMet && passed {
			clone.Status = ProposalQueued
			clone.PhaseEnteredAt = now
		} else {
			clone.Status = ProposalRejected
			clone.PhaseEnteredAt = now
		}
		s.Proposals[p.ID] = clone
		return s, nil
	default:
		return s, cerrors.Precondition(subsystem, "proposal is not eligible to advance")
	}
}

func addAmounts(amounts ...ctypes.Amount) ctypes.Amount {
	sum := ctypes.NewAmount(0)
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum
}

// VoteCastPayload is the body of a dao.vote.cast envelope.
type VoteCastPayload struct {
	ProposalID string     `json:"proposalId"`
	Option     VoteOption `json:"option"`
}

// ApplyVoteCast records a vote with its effective power computed at cast
// time from the supplied voter inputs (already resolved by the engine
// against wallet and reputation state and the delegation graph).
func ApplyVoteCast(s State, issuer string, payload []byte, now int64, inputs VoterInputs) (State, error) {
	var p VoteCastPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	proposal, ok := s.Proposals[p.ProposalID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown proposal")
	}
	if proposal.Status != ProposalVoting {
		return s, cerrors.Precondition(subsystem, "proposal is not in its voting phase")
	}
	if _, already := proposal.Votes[issuer]; already {
		return s, cerrors.Precondition(subsystem, "voter has already voted on this proposal")
	}
	power := EffectivePower(inputs)
	if power < 0 {
		power = 0
	}
	amount := ctypes.NewAmount(power)
	clone := proposal.Clone()
	clone.Votes[issuer] = Vote{Voter: issuer, Option: p.Option, Power: amount, CastAt: now}
	switch p.Option {
	case VoteFor:
		clone.ForPower = clone.ForPower.Add(amount)
	case VoteAgainst:
		clone.AgainstPower = clone.AgainstPower.Add(amount)
	case VoteAbstain:
		clone.AbstainPower = clone.AbstainPower.Add(amount)
	default:
		return s, cerrors.Precondition(subsystem, "unknown vote option")
	}
	clone.UpdatedAt = now
	s.Proposals[p.ProposalID] = clone
	return s, nil
}

// DelegateSetPayload is the body of a dao.delegate.set envelope.
type DelegateSetPayload struct {
	Delegate   string         `json:"delegate"`
	Percentage int            `json:"percentage"`
	Scope      []ProposalType `json:"scope,omitempty"`
	ExpiresAt  int64          `json:"expiresAt,omitempty"`
}

// ApplyDelegateSet creates or replaces a delegation edge from issuer,
// rejecting any edge that would close a cycle in the delegation graph.
func ApplyDelegateSet(s State, issuer string, payload []byte, now int64) (State, error) {
	var p DelegateSetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.Delegate == "" || p.Delegate == issuer {
		return s, cerrors.Precondition(subsystem, "delegate must be a distinct DID")
	}
	if p.Percentage <= 0 || p.Percentage > 100 {
		return s, cerrors.Precondition(subsystem, "percentage must be between 1 and 100")
	}
	if wouldCycle(s, issuer, p.Delegate, now) {
		return s, cerrors.New(cerrors.KindPreconditionFailed, "delegation would form a cycle")
	}
	key := issuer + "->" + p.Delegate
	s.Delegations[key] = Delegation{
		Delegator:  issuer,
		Delegate:   p.Delegate,
		Percentage: p.Percentage,
		Scope:      p.Scope,
		ExpiresAt:  p.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s, nil
}

// DelegateRevokePayload is the body of a dao.delegate.revoke envelope.
type DelegateRevokePayload struct {
	Delegate string `json:"delegate"`
}

// ApplyDelegateRevoke marks a delegation edge revoked. Revocation is a
// subsequent event, never a deletion, so the edge remains in state for
// audit.
func ApplyDelegateRevoke(s State, issuer string, payload []byte, now int64) (State, error) {
	var p DelegateRevokePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	key := issuer + "->" + p.Delegate
	d, ok := s.Delegations[key]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown delegation")
	}
	if d.Revoked {
		return s, cerrors.Precondition(subsystem, "delegation already revoked")
	}
	d.Revoked = true
	d.UpdatedAt = now
	s.Delegations[key] = d
	return s, nil
}

// TimelockQueuePayload is the body of a dao.timelock.queue envelope,
// submitted like any other envelope once a proposal has reached queued.
type TimelockQueuePayload struct {
	ID           string `json:"id"`
	ProposalID   string `json:"proposalId"`
	ExecuteAfter int64  `json:"executeAfter"`
}

// ApplyTimelockQueue records the mandatory delay before a passed proposal's
// action may execute.
func ApplyTimelockQueue(s State, issuer string, payload []byte, now int64) (State, error) {
	var p TimelockQueuePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	proposal, ok := s.Proposals[p.ProposalID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown proposal")
	}
	if proposal.Status != ProposalQueued {
		return s, cerrors.Precondition(subsystem, "proposal is not queued")
	}
	if _, exists := s.Timelocks[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "timelock entry id already exists")
	}
	s.Timelocks[p.ID] = TimelockEntry{
		ID:           p.ID,
		ProposalID:   p.ProposalID,
		Action:       proposal.Action,
		ExecuteAfter: p.ExecuteAfter,
		Status:       TimelockQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	clone := proposal.Clone()
	clone.TimelockEntryID = p.ID
	clone.UpdatedAt = now
	s.Proposals[p.ProposalID] = clone
	return s, nil
}

// TimelockExecutePayload is the body of a dao.timelock.execute envelope.
type TimelockExecutePayload struct {
	ID string `json:"id"`
}

// ApplyTimelockExecute runs a queued action once its delay has elapsed.
// Treasury-spend actions are applied to wstate in the same step; parameter
// changes and protocol upgrades are only marked executed: no parameter or
// threshold value changes as a result.
func ApplyTimelockExecute(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p TimelockExecutePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	entry, ok := s.Timelocks[p.ID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown timelock entry")
	}
	if entry.Status != TimelockQueued {
		return s, wstate, cerrors.Precondition(subsystem, "timelock entry is not queued")
	}
	if now < entry.ExecuteAfter {
		return s, wstate, cerrors.New(cerrors.KindPreconditionFailed, "timelock delay has not elapsed")
	}
	if entry.Action.Kind == ProposalTreasurySpend {
		var err error
		s, wstate, err = applyTreasurySpend(s, entry.Action.TreasuryTo, entry.Action.TreasuryAmount, now, wstate)
		if err != nil {
			return s, wstate, err
		}
	}
	entry.Status = TimelockExecuted
	entry.UpdatedAt = now
	s.Timelocks[p.ID] = entry
	if proposal, ok := s.Proposals[entry.ProposalID]; ok {
		clone := proposal.Clone()
		clone.Status = ProposalExecuted
		clone.UpdatedAt = now
		s.Proposals[entry.ProposalID] = clone
	}
	return s, wstate, nil
}

// TimelockCancelPayload is the body of a dao.timelock.cancel envelope.
type TimelockCancelPayload struct {
	ID string `json:"id"`
}

// ApplyTimelockCancel cancels a queued entry before it executes.
func ApplyTimelockCancel(s State, issuer string, payload []byte, now int64) (State, error) {
	var p TimelockCancelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	entry, ok := s.Timelocks[p.ID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown timelock entry")
	}
	if entry.Status != TimelockQueued {
		return s, cerrors.Precondition(subsystem, "timelock entry is not queued")
	}
	entry.Status = TimelockCancelled
	entry.UpdatedAt = now
	s.Timelocks[p.ID] = entry
	if proposal, ok := s.Proposals[entry.ProposalID]; ok {
		clone := proposal.Clone()
		clone.Status = ProposalCancelled
		clone.UpdatedAt = now
		s.Proposals[entry.ProposalID] = clone
	}
	return s, nil
}

// TreasuryDepositPayload is the body of a dao.treasury.deposit envelope.
type TreasuryDepositPayload struct {
	Amount ctypes.Amount `json:"amount"`
}

// ApplyTreasuryDeposit credits the DAO treasury address.
func ApplyTreasuryDeposit(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p TreasuryDepositPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.Amount.Sign() <= 0 {
		return s, wstate, cerrors.Precondition(subsystem, "deposit amount must be positive")
	}
	transferPayload, err := json.Marshal(wallet.TransferPayload{
		From: issuer, To: s.TreasuryAddress, Amount: p.Amount, Fee: ctypes.NewAmount(0),
	})
	if err != nil {
		return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal treasury deposit", err)
	}
	wstate, err = wallet.ApplyTransfer(wstate, issuer, transferPayload)
	if err != nil {
		return s, wstate, err
	}
	s.TreasuryDeposits = s.TreasuryDeposits.Add(p.Amount)
	return s, wstate, nil
}

// applyTreasurySpend debits the treasury as the effect of an executed
// treasury-spend timelock action. It is only ever called from
// ApplyTimelockExecute, never directly from a dao.treasury.spend envelope
// (there is no such standalone event — spend is exclusively a timelock
// effect).
func applyTreasurySpend(s State, to string, amount ctypes.Amount, now int64, wstate wallet.State) (State, wallet.State, error) {
	if amount.Sign() <= 0 {
		return s, wstate, nil
	}
	transferPayload, err := json.Marshal(wallet.TransferPayload{
		From: s.TreasuryAddress, To: to, Amount: amount, Fee: ctypes.NewAmount(0),
	})
	if err != nil {
		return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal treasury spend", err)
	}
	wstate, err = wallet.ApplyTransfer(wstate, s.TreasuryAddress, transferPayload)
	if err != nil {
		return s, wstate, err
	}
	s.TreasurySpends = s.TreasurySpends.Add(amount)
	return s, wstate, nil
}
