package wallet

import ctypes "github.com/clawnet/clawnet/core/types"

// State holds every address balance and escrow known to the node.
type State struct {
	Balances map[string]Balance
	Escrows  map[string]*Escrow

	// FeeTreasury is the configured sink for transfer fees, or "" if fees
	// are burned outright. See DESIGN.md open question #1.
	FeeTreasury string
	// FeesBurned accumulates every burned fee, the other half of the
	// supply-conservation ledger when FeeTreasury is unset.
	FeesBurned ctypes.Amount
}

// NewState returns an empty wallet state, the genesis value.
func NewState() State {
	return State{
		Balances: make(map[string]Balance),
		Escrows:  make(map[string]*Escrow),
	}
}

// Clone deep-copies the state for a read snapshot.
func (s State) Clone() State {
	out := State{
		Balances:    make(map[string]Balance, len(s.Balances)),
		Escrows:     make(map[string]*Escrow, len(s.Escrows)),
		FeeTreasury: s.FeeTreasury,
		FeesBurned:  s.FeesBurned,
	}
	for k, v := range s.Balances {
		out.Balances[k] = v.Clone()
	}
	for k, v := range s.Escrows {
		out.Escrows[k] = v.Clone()
	}
	return out
}

// BalanceOf returns addr's balance, defaulting to the zero balance if the
// address has never been touched.
func (s State) BalanceOf(addr string) Balance {
	return s.Balances[addr]
}
