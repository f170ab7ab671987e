package reputation

import (
	"encoding/json"

	cerrors "github.com/clawnet/clawnet/core/errors"
)

const subsystem = "reputation"

// RecordPayload is the body of a reputation.record envelope.
type RecordPayload struct {
	Target    string    `json:"target"`
	Dimension Dimension `json:"dimension"`
	Score     int       `json:"score"`
	Reference string    `json:"reference"`
}

// ReferenceResolver reports whether a reference id (an order, contract or
// lease id) names a transaction in its completed state. The engine injects
// this from the markets and contracts snapshots; reputation imports
// neither.
type ReferenceResolver func(reference string) bool

var validDimensions = map[Dimension]bool{
	DimensionQuality: true, DimensionReliability: true, DimensionTimeliness: true,
	DimensionCommunication: true, DimensionTransaction: true,
}

// ApplyRecord appends a new reputation record. A self-review (issuer ==
// target) is flagged by the derived profile's fraud signal, not rejected;
// likewise an unresolved reference is recorded as such rather than refused —
// per design, flagging here is always non-destructive.
func ApplyRecord(s State, issuer string, payload []byte, now int64, envelopeHash string, resolveReference ReferenceResolver) (State, error) {
	var p RecordPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return s, cerrors.New(cerrors.KindSchemaInvalid, err.Error())
	}
	if p.Target == "" {
		return s, cerrors.Precondition(subsystem, "target is required")
	}
	if !validDimensions[p.Dimension] {
		return s, cerrors.Precondition(subsystem, "unknown dimension")
	}
	if p.Score < 0 || p.Score > 1000 {
		return s, cerrors.Precondition(subsystem, "score must be between 0 and 1000")
	}
	resolved := resolveReference != nil && resolveReference(p.Reference)
	record := Record{
		Issuer:             issuer,
		Target:             p.Target,
		Dimension:          p.Dimension,
		Score:              p.Score,
		Reference:          p.Reference,
		Ts:                 now,
		EnvelopeHash:       envelopeHash,
		ReferenceResolved:  resolved,
	}
	return s.insert(record), nil
}
