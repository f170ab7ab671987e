package dao

// wouldCycle reports whether adding an edge delegator -> delegate would
// create a cycle in the active delegation graph, walked before the new edge
// is accepted.
func wouldCycle(s State, delegator, delegate string, now int64) bool {
	if delegator == delegate {
		return true
	}
	visited := map[string]bool{delegator: true}
	frontier := []string{delegate}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		if next == delegator {
			return true
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		for _, d := range s.DelegationsFrom(next) {
			if d.Revoked {
				continue
			}
			if d.ExpiresAt != 0 && now >= d.ExpiresAt {
				continue
			}
			frontier = append(frontier, d.Delegate)
		}
	}
	return false
}

// ResolvedShare is one hop of delegated power flowing into a delegate for a
// given proposal type.
type ResolvedShare struct {
	From   string
	To     string
	Amount int64
}

// ResolveDelegatedShares walks every active delegation scoped to ptype and
// returns each edge's contribution given a balance lookup for base power.
// It does not follow re-delegation (a delegate's incoming power is not
// itself re-delegatable) since the protocol models one level of delegation.
func ResolveDelegatedShares(s State, ptype ProposalType, now int64, basePowerOf func(addr string) int64) []ResolvedShare {
	var shares []ResolvedShare
	for _, d := range s.Delegations {
		if !d.AppliesTo(ptype, now) {
			continue
		}
		base := basePowerOf(d.Delegator)
		amount := DelegatedShare(base, d.Percentage)
		if amount == 0 {
			continue
		}
		shares = append(shares, ResolvedShare{From: d.Delegator, To: d.Delegate, Amount: amount})
	}
	return shares
}

// OutgoingTotal sums every resolved share delegator has given away.
func OutgoingTotal(shares []ResolvedShare, delegator string) int64 {
	var total int64
	for _, s := range shares {
		if s.From == delegator {
			total += s.Amount
		}
	}
	return total
}

// IncomingTotal sums every resolved share delegate has received.
func IncomingTotal(shares []ResolvedShare, delegate string) int64 {
	var total int64
	for _, s := range shares {
		if s.To == delegate {
			total += s.Amount
		}
	}
	return total
}
