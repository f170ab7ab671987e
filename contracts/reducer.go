package contracts

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
	ctypes "github.com/clawnet/clawnet/core/types"
	"github.com/clawnet/clawnet/wallet"
)

const subsystem = "contract"

// CreatePayload is the body of a contract.create envelope.
type CreatePayload struct {
	ID              string        `json:"id"`
	Client          string        `json:"client"`
	Provider        string        `json:"provider"`
	RequiredSigners []string      `json:"requiredSigners"`
	Service         string        `json:"service"`
	Terms           string        `json:"terms,omitempty"`
	TotalAmount     ctypes.Amount `json:"totalAmount"`
	Milestones      []Milestone   `json:"milestones"`
	EscrowRequired  bool          `json:"escrowRequired"`
	ArbiterDID      string        `json:"arbiterDid,omitempty"`
}

// ApplyCreate drafts a new contract. issuer must be one of the client or
// provider (the initiating party); both still must separately sign.
func ApplyCreate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p CreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.ID == "" {
		return s, cerrors.Precondition(subsystem, "contract id is required")
	}
	if issuer != p.Client && issuer != p.Provider {
		return s, cerrors.Precondition(subsystem, "contract must be created by a named party")
	}
	if _, exists := s.Contracts[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "contract id already exists")
	}
	sum := ctypes.NewAmount(0)
	for _, m := range p.Milestones {
		sum = sum.Add(m.Amount)
		if m.Status == "" {
			m.Status = MilestonePending
		}
	}
	if sum.Cmp(p.TotalAmount) > 0 {
		return s, cerrors.Precondition(subsystem, "sum of milestone amounts exceeds contract total")
	}
	milestones := make([]Milestone, len(p.Milestones))
	for i, m := range p.Milestones {
		if m.Status == "" {
			m.Status = MilestonePending
		}
		milestones[i] = m
	}
	s.Contracts[p.ID] = &Contract{
		ID:              p.ID,
		Client:          p.Client,
		Provider:        p.Provider,
		RequiredSigners: append([]string(nil), p.RequiredSigners...),
		Service:         p.Service,
		Terms:           p.Terms,
		TotalAmount:     p.TotalAmount,
		Milestones:      milestones,
		EscrowRequired:  p.EscrowRequired,
		ArbiterDID:      p.ArbiterDID,
		Status:          StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s, nil
}

// SignPayload is the body of a contract.sign envelope; the envelope
// signature is itself the contract signature, no additional payload
// authentication is required.
type SignPayload struct {
	ContractID string `json:"contractId"`
	Role       string `json:"role,omitempty"`
}

// ApplySign records one required party's signature and advances the
// contract to pending_signature (on first signature) or pending_funding
// (once every required party has signed).
func ApplySign(s State, issuer string, payload []byte, now int64) (State, error) {
	var p SignPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown contract")
	}
	if c.Status != StatusDraft && c.Status != StatusPendingSignature {
		return s, cerrors.Precondition(subsystem, "contract is not open for signature")
	}
	required := false
	for _, party := range c.RequiredSigners {
		if party == issuer {
			required = true
			break
		}
	}
	if !required {
		return s, cerrors.Precondition(subsystem, "issuer is not a required signer")
	}
	for _, sig := range c.Signatures {
		if sig.Party == issuer {
			return s, cerrors.Precondition(subsystem, "party has already signed")
		}
	}
	clone := c.Clone()
	clone.Signatures = append(clone.Signatures, Signature{Party: issuer, Role: p.Role, SignedAt: now})
	clone.Status = StatusPendingSignature
	clone.UpdatedAt = now
	if clone.AllSigned() {
		clone.Status = StatusPendingFunding
	}
	s.Contracts[p.ContractID] = clone
	return s, nil
}

// ActivatePayload is the body of a contract.activate envelope.
type ActivatePayload struct {
	ContractID string `json:"contractId"`
	EscrowID   string `json:"escrowId,omitempty"`
}

// ApplyActivate moves a fully-signed, adequately-funded contract to active.
// wstate is the current wallet snapshot used to cross-check escrow funding;
// it is read only, never mutated here.
func ApplyActivate(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, error) {
	var p ActivatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown contract")
	}
	if c.Status != StatusPendingFunding {
		return s, cerrors.Precondition(subsystem, "contract is not awaiting activation")
	}
	if !c.AllSigned() {
		return s, cerrors.Precondition(subsystem, "contract is missing required signatures")
	}
	escrowID := p.EscrowID
	if escrowID == "" {
		escrowID = c.EscrowID
	}
	if c.EscrowRequired {
		escrow, ok := wstate.Escrows[escrowID]
		if !ok {
			return s, cerrors.Precondition(subsystem, "required escrow not found")
		}
		if escrow.Status != wallet.EscrowFunded {
			return s, cerrors.Precondition(subsystem, "required escrow is not funded")
		}
		if escrow.Beneficiary != c.Provider {
			return s, cerrors.Precondition(subsystem, "escrow beneficiary does not match contract provider")
		}
		if escrow.CurrentBalance().Cmp(c.TotalAmount) < 0 {
			return s, cerrors.Precondition(subsystem, "escrow balance is less than contract total")
		}
	}
	clone := c.Clone()
	clone.EscrowID = escrowID
	clone.Status = StatusActive
	clone.UpdatedAt = now
	s.Contracts[p.ContractID] = clone
	return s, nil
}

// MilestoneSubmitPayload is the body of a contract.milestone.submit envelope.
type MilestoneSubmitPayload struct {
	ContractID  string `json:"contractId"`
	MilestoneID string `json:"milestoneId"`
	Note        string `json:"note,omitempty"`
	PrevHash    string `json:"milestoneResourcePrev,omitempty"`
}

// ApplyMilestoneSubmit records the provider's delivery of one milestone.
func ApplyMilestoneSubmit(s State, issuer string, payload []byte, now int64) (State, error) {
	var p MilestoneSubmitPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown contract")
	}
	if c.Status != StatusActive {
		return s, cerrors.Precondition(subsystem, "contract is not active")
	}
	if issuer != c.Provider {
		return s, cerrors.Precondition(subsystem, "only the provider may submit a milestone")
	}
	idx := c.milestoneIndex(p.MilestoneID)
	if idx < 0 {
		return s, cerrors.Precondition(subsystem, "unknown milestone")
	}
	if c.Milestones[idx].Status != MilestonePending && c.Milestones[idx].Status != MilestoneRejected {
		return s, cerrors.Precondition(subsystem, "milestone is not awaiting submission")
	}
	clone := c.Clone()
	clone.Milestones[idx].Status = MilestoneSubmitted
	clone.Milestones[idx].SubmissionNote = p.Note
	clone.Milestones[idx].SubmittedAt = now
	clone.UpdatedAt = now
	s.Contracts[p.ContractID] = clone
	return s, nil
}

// MilestoneReviewPayload is the shared body of contract.milestone.approve
// and contract.milestone.reject envelopes.
type MilestoneReviewPayload struct {
	ContractID  string `json:"contractId"`
	MilestoneID string `json:"milestoneId"`
	Note        string `json:"note,omitempty"`
}

// ApplyMilestoneApprove approves a submitted milestone and, when the
// contract carries a linked escrow, releases that milestone's amount to the
// provider in the same reducer step. It returns the updated contract and
// wallet states together since a single event mutates both.
func ApplyMilestoneApprove(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p MilestoneReviewPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown contract")
	}
	if issuer != c.Client {
		return s, wstate, cerrors.Precondition(subsystem, "only the client may approve a milestone")
	}
	idx := c.milestoneIndex(p.MilestoneID)
	if idx < 0 {
		return s, wstate, cerrors.Precondition(subsystem, "unknown milestone")
	}
	if c.Milestones[idx].Status != MilestoneSubmitted {
		return s, wstate, cerrors.Precondition(subsystem, "milestone is not awaiting review")
	}
	clone := c.Clone()
	clone.Milestones[idx].Status = MilestoneApproved
	clone.Milestones[idx].ReviewedAt = now
	clone.UpdatedAt = now

	if clone.EscrowID != "" {
		amount := clone.Milestones[idx].Amount
		if amount.Sign() > 0 {
			releasePayload, err := json.Marshal(wallet.EscrowReleasePayload{EscrowID: clone.EscrowID, Amount: amount})
			if err != nil {
				return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal escrow release", err)
			}
			checker := func(contractID, milestoneID string) bool {
				if contractID != clone.ID {
					return false
				}
				i := clone.milestoneIndex(milestoneID)
				return i >= 0 && clone.Milestones[i].Status == MilestoneApproved
			}
			var err2 error
			wstate, err2 = wallet.ApplyEscrowRelease(wstate, clone.Client, releasePayload, now, checker)
			if err2 != nil {
				return s, wstate, err2
			}
		}
	}
	if clone.MilestonesComplete() {
		clone.Status = StatusCompleted
	}
	s.Contracts[p.ContractID] = clone
	return s, wstate, nil
}

// ApplyMilestoneReject marks a submitted milestone rejected, recording the
// client's note; a rejected milestone accepts a new submission, so the
// provider can resubmit.
func ApplyMilestoneReject(s State, issuer string, payload []byte, now int64) (State, error) {
	var p MilestoneReviewPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown contract")
	}
	if issuer != c.Client {
		return s, cerrors.Precondition(subsystem, "only the client may reject a milestone")
	}
	idx := c.milestoneIndex(p.MilestoneID)
	if idx < 0 {
		return s, cerrors.Precondition(subsystem, "unknown milestone")
	}
	if c.Milestones[idx].Status != MilestoneSubmitted {
		return s, cerrors.Precondition(subsystem, "milestone is not awaiting review")
	}
	clone := c.Clone()
	clone.Milestones[idx].Status = MilestoneRejected
	clone.Milestones[idx].RejectionNote = p.Note
	clone.Milestones[idx].ReviewedAt = now
	clone.UpdatedAt = now
	s.Contracts[p.ContractID] = clone
	return s, nil
}

// DisputeOpenPayload is the body of a contract.dispute.open envelope.
type DisputeOpenPayload struct {
	ContractID string `json:"contractId"`
	Reason     string `json:"reason,omitempty"`
}

// ApplyDisputeOpen moves the contract to disputed and freezes its linked
// escrow. issuer must be the client or the provider.
func ApplyDisputeOpen(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p DisputeOpenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown contract")
	}
	if issuer != c.Client && issuer != c.Provider {
		return s, wstate, cerrors.Precondition(subsystem, "only a contract party may open a dispute")
	}
	if c.Status != StatusActive && c.Status != StatusPaused {
		return s, wstate, cerrors.Precondition(subsystem, "contract is not active")
	}
	var err error
	if c.EscrowID != "" {
		wstate, err = wallet.OpenDispute(wstate, c.EscrowID, now)
		if err != nil {
			return s, wstate, err
		}
	}
	clone := c.Clone()
	clone.Status = StatusDisputed
	clone.UpdatedAt = now
	s.Contracts[p.ContractID] = clone
	return s, wstate, nil
}

// DisputeResolvePayload is the body of a contract.dispute.resolve envelope,
// submitted by the contract's designated arbiter.
type DisputeResolvePayload struct {
	ContractID string        `json:"contractId"`
	ToClient   ctypes.Amount `json:"toClient"`
	ToProvider ctypes.Amount `json:"toProvider"`
}

// ApplyDisputeResolve drains the disputed escrow per the arbiter's split and
// moves the contract to completed.
func ApplyDisputeResolve(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p DisputeResolvePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown contract")
	}
	if c.Status != StatusDisputed {
		return s, wstate, cerrors.Precondition(subsystem, "contract is not disputed")
	}
	if c.ArbiterDID == "" || issuer != c.ArbiterDID {
		return s, wstate, cerrors.Precondition(subsystem, "only the designated arbiter may resolve the dispute")
	}
	var err error
	if p.ToProvider.Sign() > 0 {
		releasePayload, merr := json.Marshal(wallet.EscrowReleasePayload{EscrowID: c.EscrowID, Amount: p.ToProvider})
		if merr != nil {
			return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal escrow release", merr)
		}
		wstate, err = wallet.ApplyEscrowRelease(wstate, issuer, releasePayload, now, nil)
		if err != nil {
			return s, wstate, err
		}
	}
	if p.ToClient.Sign() > 0 {
		refundPayload, merr := json.Marshal(wallet.EscrowRefundPayload{EscrowID: c.EscrowID, Amount: p.ToClient})
		if merr != nil {
			return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal escrow refund", merr)
		}
		wstate, err = wallet.ApplyEscrowRefund(wstate, issuer, refundPayload, now)
		if err != nil {
			return s, wstate, err
		}
	}
	clone := c.Clone()
	clone.Status = StatusCompleted
	clone.UpdatedAt = now
	s.Contracts[p.ContractID] = clone
	return s, wstate, nil
}

// SettlementExecutePayload is the body of a contract.settlement.execute
// envelope: a proposed escrow split. A lone envelope only records a
// proposal; ApplySettlementExecute requires the other required party to
// submit a second envelope with the identical split before any funds move.
type SettlementExecutePayload struct {
	ContractID string        `json:"contractId"`
	ToClient   ctypes.Amount `json:"toClient"`
	ToProvider ctypes.Amount `json:"toProvider"`
}

// ApplySettlementExecute records issuer's proposed escrow split. If the
// contract already has a matching proposal pending from the other required
// party, the split executes against the escrow and the contract completes;
// otherwise the proposal is stored and nothing moves. A single party replaying
// the same or a different split never drains the escrow alone.
func ApplySettlementExecute(s State, issuer string, payload []byte, now int64, wstate wallet.State) (State, wallet.State, error) {
	var p SettlementExecutePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, wstate, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, wstate, cerrors.Precondition(subsystem, "unknown contract")
	}
	if issuer != c.Client && issuer != c.Provider {
		return s, wstate, cerrors.Precondition(subsystem, "only a contract party may execute settlement")
	}
	if c.Status != StatusDisputed && c.Status != StatusActive {
		return s, wstate, cerrors.Precondition(subsystem, "contract is not eligible for settlement")
	}

	pending := c.PendingSettlement
	agreed := pending != nil && pending.Proposer != issuer &&
		pending.ToClient.Cmp(p.ToClient) == 0 && pending.ToProvider.Cmp(p.ToProvider) == 0
	if !agreed {
		clone := c.Clone()
		clone.PendingSettlement = &SettlementProposal{Proposer: issuer, ToClient: p.ToClient, ToProvider: p.ToProvider, ProposedAt: now}
		clone.UpdatedAt = now
		s.Contracts[p.ContractID] = clone
		return s, wstate, nil
	}

	var err error
	if p.ToProvider.Sign() > 0 {
		releasePayload, merr := json.Marshal(wallet.EscrowReleasePayload{EscrowID: c.EscrowID, Amount: p.ToProvider})
		if merr != nil {
			return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal escrow release", merr)
		}
		wstate, err = wallet.ApplyEscrowRelease(wstate, issuer, releasePayload, now, nil)
		if err != nil {
			return s, wstate, err
		}
	}
	if p.ToClient.Sign() > 0 {
		refundPayload, merr := json.Marshal(wallet.EscrowRefundPayload{EscrowID: c.EscrowID, Amount: p.ToClient})
		if merr != nil {
			return s, wstate, cerrors.Wrap(cerrors.KindPreconditionFailed, "marshal escrow refund", merr)
		}
		wstate, err = wallet.ApplyEscrowRefund(wstate, issuer, refundPayload, now)
		if err != nil {
			return s, wstate, err
		}
	}
	clone := c.Clone()
	clone.PendingSettlement = nil
	clone.Status = StatusCompleted
	clone.UpdatedAt = now
	s.Contracts[p.ContractID] = clone
	return s, wstate, nil
}

// TerminatePayload is the body of a contract.terminate envelope.
type TerminatePayload struct {
	ContractID string `json:"contractId"`
	Reason     string `json:"reason,omitempty"`
}

// ApplyTerminate ends a contract outside the normal completion path (mutual
// cancellation before activation, or abandonment). It does not itself move
// escrow funds; a refund event must accompany it if the escrow is funded.
func ApplyTerminate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p TerminatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	c, ok := s.Contracts[p.ContractID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown contract")
	}
	if issuer != c.Client && issuer != c.Provider {
		return s, cerrors.Precondition(subsystem, "only a contract party may terminate")
	}
	if c.Status == StatusCompleted || c.Status == StatusTerminated || c.Status == StatusCancelled {
		return s, cerrors.Precondition(subsystem, "contract is already final")
	}
	clone := c.Clone()
	if clone.Status == StatusDraft || clone.Status == StatusPendingSignature {
		clone.Status = StatusCancelled
	} else {
		clone.Status = StatusTerminated
	}
	clone.UpdatedAt = now
	s.Contracts[p.ContractID] = clone
	return s, nil
}
