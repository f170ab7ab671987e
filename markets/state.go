package markets

// State holds every listing, order, bid, lease and open dispute known to the
// node.
type State struct {
	Listings  map[string]*Listing
	Orders    map[string]*Order
	Bids      map[string]Bid // keyed by bid id
	Leases    map[string]Lease
	Disputes  map[string]Dispute // keyed by order id
}

// NewState returns an empty markets state, the genesis value.
func NewState() State {
	return State{
		Listings: make(map[string]*Listing),
		Orders:   make(map[string]*Order),
		Bids:     make(map[string]Bid),
		Leases:   make(map[string]Lease),
		Disputes: make(map[string]Dispute),
	}
}

// Clone deep-copies the state for a read snapshot.
func (s State) Clone() State {
	out := NewState()
	for k, v := range s.Listings {
		out.Listings[k] = v.Clone()
	}
	for k, v := range s.Orders {
		out.Orders[k] = v.Clone()
	}
	for k, v := range s.Bids {
		out.Bids[k] = v.Clone()
	}
	for k, v := range s.Leases {
		out.Leases[k] = v.Clone()
	}
	for k, v := range s.Disputes {
		out.Disputes[k] = v.Clone()
	}
	return out
}

// OrderCompleted reports whether id names an order in the completed status,
// the reference-validity check the reputation reducer needs.
func (s State) OrderCompleted(id string) bool {
	o, ok := s.Orders[id]
	return ok && o.Status == OrderCompleted
}
