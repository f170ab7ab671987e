// Package contracts implements the multi-party service contract reducer:
// negotiation, signatures, funding, milestone cycles, disputes and
// settlement. It depends on wallet for escrow cross-checks but is never
// imported by it.
package contracts

import ctypes "github.com/clawnet/clawnet/core/types"

// Status enumerates the contract lifecycle states.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingSignature Status = "pending_signature"
	StatusPendingFunding   Status = "pending_funding"
	StatusActive           Status = "active"
	StatusPaused           Status = "paused"
	StatusCompleted        Status = "completed"
	StatusDisputed         Status = "disputed"
	StatusTerminated       Status = "terminated"
	StatusCancelled        Status = "cancelled"
	StatusExpired          Status = "expired"
)

// MilestoneStatus enumerates a milestone's submission/approval cycle.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneSubmitted MilestoneStatus = "submitted"
	MilestoneApproved  MilestoneStatus = "approved"
	MilestoneRejected  MilestoneStatus = "rejected"
	MilestoneWaived    MilestoneStatus = "waived"
)

// Milestone is a contract sub-obligation with its own submission/approval
// cycle and optional automatic release.
type Milestone struct {
	ID             string          `json:"id"`
	Description    string          `json:"description,omitempty"`
	Amount         ctypes.Amount   `json:"amount"`
	Status         MilestoneStatus `json:"status"`
	SubmissionNote string          `json:"submissionNote,omitempty"`
	RejectionNote  string          `json:"rejectionNote,omitempty"`
	SubmittedAt    int64           `json:"submittedAt,omitempty"`
	ReviewedAt     int64           `json:"reviewedAt,omitempty"`
	// ResourcePrev tracks the last envelope hash mutating this specific
	// milestone sub-resource, chained independently of the parent contract.
	ResourcePrev string `json:"-"`
}

// Clone copies a Milestone by value (Amount is already a value type).
func (m Milestone) Clone() Milestone { return m }

// Signature records one required party's acceptance. The envelope signature
// on the contract.sign event is itself the contract signature; this record
// is the reducer's bookkeeping of who has signed.
type Signature struct {
	Party  string `json:"party"`
	Role   string `json:"role"`
	SignedAt int64 `json:"signedAt"`
}

// SettlementProposal records one party's proposed escrow split from a
// contract.settlement.execute envelope, pending the other required party
// submitting a matching one. No funds move until both sides agree.
type SettlementProposal struct {
	Proposer   string        `json:"proposer"`
	ToClient   ctypes.Amount `json:"toClient"`
	ToProvider ctypes.Amount `json:"toProvider"`
	ProposedAt int64         `json:"proposedAt"`
}

// Contract is a multi-party agreement with a linear state machine.
type Contract struct {
	ID             string          `json:"id"`
	Client         string          `json:"client"`
	Provider       string          `json:"provider"`
	RequiredSigners []string       `json:"requiredSigners"`
	Signatures     []Signature     `json:"signatures"`
	Service        string          `json:"service"`
	Terms          string          `json:"terms,omitempty"`
	TotalAmount    ctypes.Amount   `json:"totalAmount"`
	Milestones     []Milestone     `json:"milestones"`
	EscrowRequired bool            `json:"escrowRequired"`
	EscrowID       string          `json:"escrowId,omitempty"`
	ArbiterDID     string          `json:"arbiterDid,omitempty"`
	Status         Status          `json:"status"`
	// PendingSettlement holds the first party's settlement.execute terms
	// until the counterparty proposes a matching split.
	PendingSettlement *SettlementProposal `json:"pendingSettlement,omitempty"`
	CreatedAt         int64               `json:"createdAt"`
	UpdatedAt         int64               `json:"updatedAt"`
	// ResourcePrev tracks the last envelope hash mutating the contract's top
	// level resource (distinct from each milestone's own chain).
	ResourcePrev string `json:"-"`
}

// Clone deep-copies a Contract.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	clone.RequiredSigners = append([]string(nil), c.RequiredSigners...)
	clone.Signatures = append([]Signature(nil), c.Signatures...)
	clone.Milestones = make([]Milestone, len(c.Milestones))
	copy(clone.Milestones, c.Milestones)
	if c.PendingSettlement != nil {
		pending := *c.PendingSettlement
		clone.PendingSettlement = &pending
	}
	return &clone
}

// milestoneIndex returns the index of the named milestone, or -1.
func (c *Contract) milestoneIndex(id string) int {
	for i := range c.Milestones {
		if c.Milestones[i].ID == id {
			return i
		}
	}
	return -1
}

// AllSigned reports whether every required signer has signed.
func (c *Contract) AllSigned() bool {
	if len(c.RequiredSigners) == 0 {
		return false
	}
	signed := make(map[string]bool, len(c.Signatures))
	for _, s := range c.Signatures {
		signed[s.Party] = true
	}
	for _, p := range c.RequiredSigners {
		if !signed[p] {
			return false
		}
	}
	return true
}

// MilestonesComplete reports whether every milestone has reached a terminal
// state (approved or waived).
func (c *Contract) MilestonesComplete() bool {
	for _, m := range c.Milestones {
		if m.Status != MilestoneApproved && m.Status != MilestoneWaived {
			return false
		}
	}
	return true
}

// Resource returns the causal-chain resource key for the contract's top
// level resource.
func Resource(id string) string { return "contract:" + id }

// MilestoneResource returns the causal-chain resource key for one
// milestone's independent sub-chain.
func MilestoneResource(contractID, milestoneID string) string {
	return "contract.milestone:" + contractID + ":" + milestoneID
}
