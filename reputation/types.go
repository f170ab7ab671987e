// Package reputation implements the time-decayed multi-dimensional scoring
// engine: per-dimension weighted averages, an overall level mapping, and a
// set of non-destructive fraud signal predicates.
package reputation

// Dimension enumerates the scored facets of a reputation record.
type Dimension string

const (
	DimensionQuality       Dimension = "quality"
	DimensionReliability   Dimension = "reliability"
	DimensionTimeliness    Dimension = "timeliness"
	DimensionCommunication Dimension = "communication"
	DimensionTransaction   Dimension = "transaction"
)

// AllDimensions lists every scored dimension in the order used to compute an
// overall score.
var AllDimensions = []Dimension{
	DimensionQuality, DimensionReliability, DimensionTimeliness,
	DimensionTransaction, DimensionCommunication,
}

// DimensionWeights are the default overall-score weights, summing to 1.0.
var DimensionWeights = map[Dimension]float64{
	DimensionQuality:       0.30,
	DimensionReliability:   0.25,
	DimensionTimeliness:    0.20,
	DimensionTransaction:   0.15,
	DimensionCommunication: 0.10,
}

// Level is the coarse reputation tier derived from an overall score.
type Level string

const (
	LevelRisky     Level = "risky"
	LevelObserved  Level = "observed"
	LevelNewcomer  Level = "newcomer"
	LevelTrusted   Level = "trusted"
	LevelExpert    Level = "expert"
	LevelElite     Level = "elite"
	LevelLegend    Level = "legend"
)

// LevelFor maps an overall score in [0, 1000] to its level.
func LevelFor(score int) Level {
	switch {
	case score < 150:
		return LevelRisky
	case score < 250:
		return LevelObserved
	case score < 400:
		return LevelNewcomer
	case score < 600:
		return LevelTrusted
	case score < 800:
		return LevelExpert
	case score < 900:
		return LevelElite
	default:
		return LevelLegend
	}
}

// Record is one reputation.record event's payload: a single dimension score
// contributed by issuer about target, tied to a completed transaction.
type Record struct {
	Issuer    string    `json:"issuer"`
	Target    string    `json:"target"`
	Dimension Dimension `json:"dimension"`
	Score     int       `json:"score"`
	Reference string    `json:"reference"`
	Ts        int64     `json:"ts"`
	// EnvelopeHash is the record's key, the hash of the envelope that carried
	// it.
	EnvelopeHash string `json:"envelopeHash"`
	// ReferenceResolved records whether Reference resolved to a completed
	// transaction at apply time. Recorded once, at apply time, since the
	// referenced order/contract/lease may later be deleted from an old
	// snapshot's view but the fraud signal must stay reproducible on replay.
	ReferenceResolved bool `json:"referenceResolved"`
}

// RiskLevel is the outcome of the fraud-signal predicates over a target's
// record set.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Profile is the derived, queryable view of a target's reputation: the
// weighted score per dimension, the overall score and level, and the
// current fraud risk assessment. It is never stored directly; it is
// recomputed from the record set on read.
type Profile struct {
	Target           string             `json:"target"`
	DimensionScores  map[Dimension]int  `json:"dimensionScores"`
	OverallScore     int                `json:"overallScore"`
	Level            Level              `json:"level"`
	Risk             RiskLevel          `json:"risk"`
}

const (
	baselineScore = 500
	halfLifeMs    = int64(90 * 24 * 60 * 60 * 1000)
	minWeight     = 0.1
	maxAgeMs      = int64(2 * 365 * 24 * 60 * 60 * 1000)
)

// Resource returns the causal-chain resource key for a reputation record.
// Reputation records are append-only facts, not mutable entities, so each
// record occupies its own single-entry resource keyed by its envelope hash.
func Resource(envelopeHash string) string { return "reputation.record:" + envelopeHash }
