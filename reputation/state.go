package reputation

// State holds every reputation record known to the node, keyed by the
// envelope hash that carried it, plus a per-target index for fast profile
// derivation.
type State struct {
	Records map[string]Record
	byTarget map[string][]string // target -> envelope hashes, insertion order
}

// NewState returns an empty reputation state, the genesis value.
func NewState() State {
	return State{Records: make(map[string]Record), byTarget: make(map[string][]string)}
}

// Clone deep-copies the state for a read snapshot.
func (s State) Clone() State {
	out := NewState()
	for k, v := range s.Records {
		out.Records[k] = v
	}
	for k, v := range s.byTarget {
		out.byTarget[k] = append([]string(nil), v...)
	}
	return out
}

// RecordsFor returns every record naming target, in insertion order.
func (s State) RecordsFor(target string) []Record {
	hashes := s.byTarget[target]
	out := make([]Record, 0, len(hashes))
	for _, h := range hashes {
		if r, ok := s.Records[h]; ok {
			out = append(out, r)
		}
	}
	return out
}

// insert adds a record and indexes it by target. Returns a new State value;
// callers hold the State by value and reassign, consistent with every other
// reducer in this module.
func (s State) insert(r Record) State {
	s.Records[r.EnvelopeHash] = r
	s.byTarget[r.Target] = append(s.byTarget[r.Target], r.EnvelopeHash)
	return s
}
