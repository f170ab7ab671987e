// Package wallet implements the wallet reducer: address balances,
// fee-bearing transfers, and the escrow lifecycle state machine.
package wallet

import ctypes "github.com/clawnet/clawnet/core/types"

// Balance holds one address's four balance buckets. All fields are
// non-negative; available + locked.* >= 0 is enforced by every mutation.
type Balance struct {
	Available         ctypes.Amount `json:"available"`
	Pending           ctypes.Amount `json:"pending"`
	LockedEscrow      ctypes.Amount `json:"lockedEscrow"`
	LockedGovernance  ctypes.Amount `json:"lockedGovernance"`
}

// Clone copies a Balance by value (Amount is already a value type).
func (b Balance) Clone() Balance { return b }

// EscrowStatus enumerates the escrow lifecycle states.
type EscrowStatus string

const (
	EscrowPending   EscrowStatus = "pending"
	EscrowFunded    EscrowStatus = "funded"
	EscrowReleasing EscrowStatus = "releasing"
	EscrowReleased  EscrowStatus = "released"
	EscrowRefunding EscrowStatus = "refunding"
	EscrowRefunded  EscrowStatus = "refunded"
	EscrowDisputed  EscrowStatus = "disputed"
	EscrowExpired   EscrowStatus = "expired"
)

// ConditionKind enumerates the supported declarative release conditions.
type ConditionKind string

const (
	ConditionManual     ConditionKind = "manual"
	ConditionTimeAfter  ConditionKind = "time_after"
	ConditionMilestone  ConditionKind = "milestone"
	ConditionMultiSig   ConditionKind = "multi_sig"
	ConditionCompound   ConditionKind = "compound"
)

// CompoundOp is the boolean operator joining sub-conditions in a compound
// release rule.
type CompoundOp string

const (
	CompoundAND CompoundOp = "AND"
	CompoundOR  CompoundOp = "OR"
)

// ReleaseRule is a declarative condition gating an escrow release.
type ReleaseRule struct {
	Kind ConditionKind `json:"kind"`

	// ConditionTimeAfter
	TimeAfter int64 `json:"timeAfter,omitempty"`

	// ConditionMilestone
	ContractID  string `json:"contractId,omitempty"`
	MilestoneID string `json:"milestoneId,omitempty"`

	// ConditionMultiSig
	Signers   []string `json:"signers,omitempty"`
	Threshold int      `json:"threshold,omitempty"`

	// ConditionCompound
	Op         CompoundOp    `json:"op,omitempty"`
	Conditions []ReleaseRule `json:"conditions,omitempty"`
}

// Escrow is a custodial balance released on conditions.
type Escrow struct {
	ID          string       `json:"id"`
	Depositor   string       `json:"depositor"`
	Beneficiary string       `json:"beneficiary"`
	Amount      ctypes.Amount `json:"amount"` // total funded to date
	Released    ctypes.Amount `json:"released"`
	Refunded    ctypes.Amount `json:"refunded"`
	Rule        ReleaseRule  `json:"rule"`
	ArbiterDID  string       `json:"arbiterDid,omitempty"`
	ExpiresAt   int64        `json:"expiresAt,omitempty"`
	Status      EscrowStatus `json:"status"`
	CreatedAt   int64        `json:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt"`
	// MultiSigApprovals is carried in escrow state but no reducer writes
	// it: a multi_sig release counts only the approvals listed in that
	// release event, so approvals do not accumulate across releases.
	MultiSigApprovals map[string][]string `json:"multiSigApprovals,omitempty"`
}

// Clone deep-copies an Escrow.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if len(e.MultiSigApprovals) > 0 {
		clone.MultiSigApprovals = make(map[string][]string, len(e.MultiSigApprovals))
		for k, v := range e.MultiSigApprovals {
			clone.MultiSigApprovals[k] = append([]string(nil), v...)
		}
	}
	return &clone
}

// CurrentBalance is the escrow's undispersed balance: funded - released -
// refunded.
func (e *Escrow) CurrentBalance() ctypes.Amount {
	return e.Amount.Sub(e.Released).Sub(e.Refunded)
}

// Resource returns the causal-chain resource key for an address's balance.
func BalanceResource(addr string) string { return "wallet.balance:" + addr }

// EscrowResource returns the causal-chain resource key for an escrow.
func EscrowResource(id string) string { return "wallet.escrow:" + id }
