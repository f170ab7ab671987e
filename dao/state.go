package dao

import ctypes "github.com/clawnet/clawnet/core/types"

// State holds every proposal, delegation and timelock entry known to the
// node, plus the DAO treasury's running totals.
type State struct {
	Proposals   map[string]*Proposal
	Delegations map[string]Delegation // keyed by delegator+"->"+delegate
	Timelocks   map[string]TimelockEntry

	TreasuryAddress  string
	TreasuryDeposits ctypes.Amount
	TreasurySpends   ctypes.Amount
}

// NewState returns an empty DAO state, the genesis value.
func NewState() State {
	return State{
		Proposals:   make(map[string]*Proposal),
		Delegations: make(map[string]Delegation),
		Timelocks:   make(map[string]TimelockEntry),
	}
}

// Clone deep-copies the state for a read snapshot.
func (s State) Clone() State {
	out := NewState()
	out.TreasuryAddress = s.TreasuryAddress
	out.TreasuryDeposits = s.TreasuryDeposits
	out.TreasurySpends = s.TreasurySpends
	for k, v := range s.Proposals {
		out.Proposals[k] = v.Clone()
	}
	for k, v := range s.Delegations {
		out.Delegations[k] = v.Clone()
	}
	for k, v := range s.Timelocks {
		out.Timelocks[k] = v.Clone()
	}
	return out
}

// DelegationsFrom returns every delegation s.Delegations holds for
// delegator, revoked ones included.
func (s State) DelegationsFrom(delegator string) []Delegation {
	out := make([]Delegation, 0)
	for _, d := range s.Delegations {
		if d.Delegator == delegator {
			out = append(out, d)
		}
	}
	return out
}

// DelegationsTo returns every delegation targeting delegate, revoked ones
// included.
func (s State) DelegationsTo(delegate string) []Delegation {
	out := make([]Delegation, 0)
	for _, d := range s.Delegations {
		if d.Delegate == delegate {
			out = append(out, d)
		}
	}
	return out
}
