package wallet

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
	ctypes "github.com/clawnet/clawnet/core/types"
)

const subsystem = "wallet"

// TransferPayload is the body of a wallet.transfer envelope.
type TransferPayload struct {
	From   string        `json:"from"`
	To     string        `json:"to"`
	Amount ctypes.Amount `json:"amount"`
	Fee    ctypes.Amount `json:"fee"`
}

// ApplyTransfer moves amount+fee out of from's available balance, amount
// into to's available balance, and routes fee to the configured treasury or
// burns it (see DESIGN.md open question #1).
func ApplyTransfer(s State, issuer string, payload []byte) (State, error) {
	var p TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.From != issuer {
		return s, cerrors.Precondition(subsystem, "transfer must be issued by the sender")
	}
	if p.From == "" || p.To == "" {
		return s, cerrors.Precondition(subsystem, "from and to addresses are required")
	}
	if p.Amount.Sign() <= 0 {
		return s, cerrors.Precondition(subsystem, "amount must be positive")
	}
	if p.Fee.Sign() < 0 {
		return s, cerrors.Precondition(subsystem, "fee must be non-negative")
	}
	debit := p.Amount.Add(p.Fee)
	from := s.BalanceOf(p.From)
	if from.Available.Cmp(debit) < 0 {
		return s, cerrors.Precondition(subsystem, "insufficient available balance")
	}
	from.Available = from.Available.Sub(debit)
	s.Balances[p.From] = from

	to := s.BalanceOf(p.To)
	to.Available = to.Available.Add(p.Amount)
	s.Balances[p.To] = to

	if p.Fee.Sign() > 0 {
		if s.FeeTreasury != "" {
			treasury := s.BalanceOf(s.FeeTreasury)
			treasury.Available = treasury.Available.Add(p.Fee)
			s.Balances[s.FeeTreasury] = treasury
		} else {
			s.FeesBurned = s.FeesBurned.Add(p.Fee)
		}
	}
	return s, nil
}

// EscrowCreatePayload is the body of a wallet.escrow.create envelope.
type EscrowCreatePayload struct {
	ID          string      `json:"id"`
	Depositor   string      `json:"depositor"`
	Beneficiary string      `json:"beneficiary"`
	Rule        ReleaseRule `json:"rule"`
	ArbiterDID  string      `json:"arbiterDid,omitempty"`
	ExpiresAt   int64       `json:"expiresAt,omitempty"`
}

// ApplyEscrowCreate registers a new escrow in the pending state. No funds
// move until a subsequent fund event.
func ApplyEscrowCreate(s State, issuer string, payload []byte, now int64) (State, error) {
	var p EscrowCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.Depositor != issuer {
		return s, cerrors.Precondition(subsystem, "escrow must be created by its depositor")
	}
	if p.ID == "" || p.Beneficiary == "" {
		return s, cerrors.Precondition(subsystem, "id and beneficiary are required")
	}
	if _, exists := s.Escrows[p.ID]; exists {
		return s, cerrors.Precondition(subsystem, "escrow id already exists")
	}
	s.Escrows[p.ID] = &Escrow{
		ID:          p.ID,
		Depositor:   p.Depositor,
		Beneficiary: p.Beneficiary,
		Rule:        p.Rule,
		ArbiterDID:  p.ArbiterDID,
		ExpiresAt:   p.ExpiresAt,
		Status:      EscrowPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s, nil
}

// EscrowFundPayload is the body of a wallet.escrow.fund envelope.
type EscrowFundPayload struct {
	EscrowID string        `json:"escrowId"`
	Amount   ctypes.Amount `json:"amount"`
}

// ApplyEscrowFund moves amount from the depositor's available balance into
// locked.escrow and credits the escrow balance.
func ApplyEscrowFund(s State, issuer string, payload []byte, now int64) (State, error) {
	var p EscrowFundPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	escrow, ok := s.Escrows[p.EscrowID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown escrow")
	}
	if escrow.Depositor != issuer {
		return s, cerrors.Precondition(subsystem, "only the depositor may fund this escrow")
	}
	if escrow.Status != EscrowPending && escrow.Status != EscrowFunded {
		return s, cerrors.Precondition(subsystem, "escrow is not open for funding")
	}
	if p.Amount.Sign() <= 0 {
		return s, cerrors.Precondition(subsystem, "fund amount must be positive")
	}
	bal := s.BalanceOf(escrow.Depositor)
	if bal.Available.Cmp(p.Amount) < 0 {
		return s, cerrors.Precondition(subsystem, "insufficient available balance")
	}
	bal.Available = bal.Available.Sub(p.Amount)
	bal.LockedEscrow = bal.LockedEscrow.Add(p.Amount)
	s.Balances[escrow.Depositor] = bal

	clone := escrow.Clone()
	clone.Amount = clone.Amount.Add(p.Amount)
	clone.Status = EscrowFunded
	clone.UpdatedAt = now
	s.Escrows[p.EscrowID] = clone
	return s, nil
}

// EscrowReleasePayload is the body of a wallet.escrow.release envelope.
type EscrowReleasePayload struct {
	EscrowID string        `json:"escrowId"`
	Amount   ctypes.Amount `json:"amount"`
	// Approvals lists DIDs co-signing a multi_sig release in this event.
	Approvals []string `json:"approvals,omitempty"`
}

// ApplyEscrowRelease authorizes a (possibly partial) release to the
// beneficiary once the escrow's release rule is satisfied. issuer must be
// the depositor, the beneficiary, or (while disputed) the escrow's arbiter.
func ApplyEscrowRelease(s State, issuer string, payload []byte, now int64, checkMilestone MilestoneChecker) (State, error) {
	var p EscrowReleasePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	escrow, ok := s.Escrows[p.EscrowID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown escrow")
	}
	if escrow.Status != EscrowFunded && escrow.Status != EscrowDisputed {
		return s, cerrors.Precondition(subsystem, "escrow is not releasable")
	}
	isArbiterPath := escrow.Status == EscrowDisputed
	if isArbiterPath {
		if escrow.ArbiterDID == "" || issuer != escrow.ArbiterDID {
			return s, cerrors.Precondition(subsystem, "only the designated arbiter may release a disputed escrow")
		}
	} else if issuer != escrow.Depositor && issuer != escrow.Beneficiary {
		return s, cerrors.Precondition(subsystem, "only depositor, beneficiary or arbiter may release")
	}
	if p.Amount.Sign() <= 0 {
		return s, cerrors.Precondition(subsystem, "release amount must be positive")
	}
	if escrow.CurrentBalance().Cmp(p.Amount) < 0 {
		return s, cerrors.Precondition(subsystem, "release amount exceeds escrow balance")
	}
	if !isArbiterPath {
		ctx := ConditionContext{Now: now, MilestoneApproved: checkMilestone, Approvals: p.Approvals}
		if !ConditionMet(escrow.Rule, ctx) {
			return s, cerrors.Precondition(subsystem, "release rule not satisfied")
		}
	}

	depositorBal := s.BalanceOf(escrow.Depositor)
	depositorBal.LockedEscrow = depositorBal.LockedEscrow.Sub(p.Amount)
	s.Balances[escrow.Depositor] = depositorBal

	beneficiaryBal := s.BalanceOf(escrow.Beneficiary)
	beneficiaryBal.Available = beneficiaryBal.Available.Add(p.Amount)
	s.Balances[escrow.Beneficiary] = beneficiaryBal

	clone := escrow.Clone()
	clone.Released = clone.Released.Add(p.Amount)
	clone.UpdatedAt = now
	if clone.CurrentBalance().IsZero() {
		clone.Status = EscrowReleased
	}
	s.Escrows[p.EscrowID] = clone
	return s, nil
}

// EscrowRefundPayload is the body of a wallet.escrow.refund envelope.
type EscrowRefundPayload struct {
	EscrowID string        `json:"escrowId"`
	Amount   ctypes.Amount `json:"amount"`
}

// ApplyEscrowRefund reverses funding back to the depositor. issuer must be
// the beneficiary (voluntary refund), the depositor (only while pending
// expiry), or the arbiter while disputed.
func ApplyEscrowRefund(s State, issuer string, payload []byte, now int64) (State, error) {
	var p EscrowRefundPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	escrow, ok := s.Escrows[p.EscrowID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown escrow")
	}
	if escrow.Status != EscrowFunded && escrow.Status != EscrowDisputed && escrow.Status != EscrowExpired {
		return s, cerrors.Precondition(subsystem, "escrow is not refundable")
	}
	switch {
	case escrow.Status == EscrowDisputed:
		if issuer != escrow.ArbiterDID {
			return s, cerrors.Precondition(subsystem, "only the designated arbiter may refund a disputed escrow")
		}
	case issuer != escrow.Beneficiary && issuer != escrow.Depositor:
		return s, cerrors.Precondition(subsystem, "only beneficiary, depositor or arbiter may refund")
	}
	if p.Amount.Sign() <= 0 {
		return s, cerrors.Precondition(subsystem, "refund amount must be positive")
	}
	if escrow.CurrentBalance().Cmp(p.Amount) < 0 {
		return s, cerrors.Precondition(subsystem, "refund amount exceeds escrow balance")
	}

	depositorBal := s.BalanceOf(escrow.Depositor)
	depositorBal.LockedEscrow = depositorBal.LockedEscrow.Sub(p.Amount)
	depositorBal.Available = depositorBal.Available.Add(p.Amount)
	s.Balances[escrow.Depositor] = depositorBal

	clone := escrow.Clone()
	clone.Refunded = clone.Refunded.Add(p.Amount)
	clone.UpdatedAt = now
	if clone.CurrentBalance().IsZero() {
		clone.Status = EscrowRefunded
	}
	s.Escrows[p.EscrowID] = clone
	return s, nil
}

// OpenDispute freezes an escrow so neither release nor refund may proceed
// except through the arbiter path. Called by the markets and contracts
// reducers when a dispute is opened over a linked escrow; it is not itself
// a distinct wallet event type.
func OpenDispute(s State, escrowID string, now int64) (State, error) {
	escrow, ok := s.Escrows[escrowID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown escrow")
	}
	if escrow.Status != EscrowFunded {
		return s, cerrors.Precondition(subsystem, "only a funded escrow can be disputed")
	}
	clone := escrow.Clone()
	clone.Status = EscrowDisputed
	clone.UpdatedAt = now
	s.Escrows[escrowID] = clone
	return s, nil
}

// Expire sweeps a past-deadline escrow into the expired state, from which
// only a refund is possible. Invoked by the engine's time-sweep pass against
// wall-clock time, not by an event.
func Expire(s State, escrowID string, now int64) (State, error) {
	escrow, ok := s.Escrows[escrowID]
	if !ok {
		return s, cerrors.Precondition(subsystem, "unknown escrow")
	}
	if escrow.Status != EscrowFunded {
		return s, nil
	}
	if escrow.ExpiresAt == 0 || now < escrow.ExpiresAt {
		return s, nil
	}
	clone := escrow.Clone()
	clone.Status = EscrowExpired
	clone.UpdatedAt = now
	s.Escrows[escrowID] = clone
	return s, nil
}
