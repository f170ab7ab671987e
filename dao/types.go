// Package dao implements proposal lifecycle, quadratic+reputation+lockup
// weighted voting, delegation, timelocked execution, and the DAO treasury.
// It depends only on wallet (for token balances and the treasury address),
// never on markets, contracts or reputation.
package dao

import ctypes "github.com/clawnet/clawnet/core/types"

// ProposalType determines a proposal's thresholds and the action it
// executes once queued.
type ProposalType string

const (
	ProposalSignal           ProposalType = "signal"
	ProposalParameterChange  ProposalType = "parameter_change"
	ProposalTreasurySpend    ProposalType = "treasury_spend"
	ProposalProtocolUpgrade  ProposalType = "protocol_upgrade"
	ProposalEmergency        ProposalType = "emergency"
)

// ProposalStatus enumerates the proposal lifecycle.
type ProposalStatus string

const (
	ProposalDraft      ProposalStatus = "draft"
	ProposalDiscussion ProposalStatus = "discussion"
	ProposalVoting     ProposalStatus = "voting"
	ProposalQueued     ProposalStatus = "queued"
	ProposalExecuted   ProposalStatus = "executed"
	ProposalRejected   ProposalStatus = "rejected"
	ProposalCancelled  ProposalStatus = "cancelled"
)

// VoteOption enumerates the three options a voter may choose.
type VoteOption string

const (
	VoteFor     VoteOption = "for"
	VoteAgainst VoteOption = "against"
	VoteAbstain VoteOption = "abstain"
)

// Thresholds are a proposal type's quorum and pass requirements, each a
// share (0-100): quorum of the total votable supply, pass of the for+against
// votes cast. It also holds the type's per-phase windows.
type Thresholds struct {
	QuorumPct          int
	PassPct            int
	DiscussionWindowMs int64
	VotingWindowMs     int64
	TimelockDelayMs    int64
}

// DefaultThresholds is the governance-parameter table. It is fixed at
// build time: executing a parameter_change proposal does not modify it.
var DefaultThresholds = map[ProposalType]Thresholds{
	ProposalSignal:          {QuorumPct: 5, PassPct: 50, DiscussionWindowMs: dayMs, VotingWindowMs: 3 * dayMs, TimelockDelayMs: 0},
	ProposalParameterChange: {QuorumPct: 15, PassPct: 66, DiscussionWindowMs: 2 * dayMs, VotingWindowMs: 5 * dayMs, TimelockDelayMs: 2 * dayMs},
	ProposalTreasurySpend:   {QuorumPct: 15, PassPct: 66, DiscussionWindowMs: 2 * dayMs, VotingWindowMs: 5 * dayMs, TimelockDelayMs: 2 * dayMs},
	ProposalProtocolUpgrade: {QuorumPct: 25, PassPct: 75, DiscussionWindowMs: 3 * dayMs, VotingWindowMs: 7 * dayMs, TimelockDelayMs: 7 * dayMs},
	ProposalEmergency:       {QuorumPct: 0, PassPct: 0, DiscussionWindowMs: 0, VotingWindowMs: dayMs, TimelockDelayMs: 0},
}

const dayMs = int64(24 * 60 * 60 * 1000)

// Action is a typed, natively-interpreted timelock action; there is no
// general VM.
type Action struct {
	Kind            ProposalType      `json:"kind"`
	ParameterKey    string            `json:"parameterKey,omitempty"`
	ParameterValue  string            `json:"parameterValue,omitempty"`
	TreasuryTo      string            `json:"treasuryTo,omitempty"`
	TreasuryAmount  ctypes.Amount     `json:"treasuryAmount,omitempty"`
	UpgradeVersion  string            `json:"upgradeVersion,omitempty"`
}

// Proposal is a DAO governance item moving through the phase lifecycle.
type Proposal struct {
	ID              string         `json:"id"`
	Proposer        string         `json:"proposer"`
	Type            ProposalType   `json:"type"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Action          Action         `json:"action"`
	Status          ProposalStatus `json:"status"`
	PhaseEnteredAt  int64          `json:"phaseEnteredAt"`
	Votes           map[string]Vote `json:"votes"`
	ForPower        ctypes.Amount  `json:"forPower"`
	AgainstPower    ctypes.Amount  `json:"againstPower"`
	AbstainPower    ctypes.Amount  `json:"abstainPower"`
	TimelockEntryID string         `json:"timelockEntryId,omitempty"`
	CreatedAt       int64          `json:"createdAt"`
	UpdatedAt       int64          `json:"updatedAt"`
}

// Clone deep-copies a Proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Votes = make(map[string]Vote, len(p.Votes))
	for k, v := range p.Votes {
		clone.Votes[k] = v
	}
	return &clone
}

// Vote is one voter's recorded choice and effective power at cast time.
type Vote struct {
	Voter    string        `json:"voter"`
	Option   VoteOption    `json:"option"`
	Power    ctypes.Amount `json:"power"`
	CastAt   int64         `json:"castAt"`
}

// Delegation assigns a share of the delegator's voting power to a delegate,
// scoped to all proposal types or a named subset.
type Delegation struct {
	Delegator  string         `json:"delegator"`
	Delegate   string         `json:"delegate"`
	Percentage int            `json:"percentage"`
	Scope      []ProposalType `json:"scope,omitempty"` // empty means all
	ExpiresAt  int64          `json:"expiresAt,omitempty"`
	Revoked    bool           `json:"revoked"`
	CreatedAt  int64          `json:"createdAt"`
	UpdatedAt  int64          `json:"updatedAt"`
}

// Clone copies a Delegation by value.
func (d Delegation) Clone() Delegation { return d }

// AppliesTo reports whether the delegation is active and scoped to ptype at
// time now.
func (d Delegation) AppliesTo(ptype ProposalType, now int64) bool {
	if d.Revoked {
		return false
	}
	if d.ExpiresAt != 0 && now >= d.ExpiresAt {
		return false
	}
	if len(d.Scope) == 0 {
		return true
	}
	for _, s := range d.Scope {
		if s == ptype {
			return true
		}
	}
	return false
}

// TimelockStatus enumerates a timelock entry's state.
type TimelockStatus string

const (
	TimelockQueued    TimelockStatus = "queued"
	TimelockExecuted  TimelockStatus = "executed"
	TimelockCancelled TimelockStatus = "cancelled"
)

// TimelockEntry is the mandatory delay between a proposal passing and its
// action executing.
type TimelockEntry struct {
	ID           string         `json:"id"`
	ProposalID   string         `json:"proposalId"`
	Action       Action         `json:"action"`
	ExecuteAfter int64          `json:"executeAfter"`
	Status       TimelockStatus `json:"status"`
	CreatedAt    int64          `json:"createdAt"`
	UpdatedAt    int64          `json:"updatedAt"`
}

// Clone copies a TimelockEntry by value.
func (t TimelockEntry) Clone() TimelockEntry { return t }

// ProposalResource returns the causal-chain resource key for a proposal.
func ProposalResource(id string) string { return "dao.proposal:" + id }

// DelegationResource returns the causal-chain resource key for a delegation
// edge.
func DelegationResource(delegator, delegate string) string {
	return "dao.delegation:" + delegator + ":" + delegate
}

// TimelockResource returns the causal-chain resource key for a timelock
// entry.
func TimelockResource(id string) string { return "dao.timelock:" + id }
