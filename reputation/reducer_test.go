package reputation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRecordAppendsAndIndexesByTarget(t *testing.T) {
	payload, err := json.Marshal(RecordPayload{Target: "bob", Dimension: DimensionQuality, Score: 700, Reference: "order-1"})
	require.NoError(t, err)
	resolve := func(reference string) bool { return reference == "order-1" }

	s, err := ApplyRecord(NewState(), "alice", payload, 1000, "hash-1", resolve)
	require.NoError(t, err)

	records := s.RecordsFor("bob")
	require.Len(t, records, 1)
	require.Equal(t, "alice", records[0].Issuer)
	require.True(t, records[0].ReferenceResolved)
}

func TestApplyRecordRejectsUnknownDimension(t *testing.T) {
	payload, err := json.Marshal(RecordPayload{Target: "bob", Dimension: Dimension("bogus"), Score: 500})
	require.NoError(t, err)
	_, err = ApplyRecord(NewState(), "alice", payload, 1000, "hash-1", nil)
	require.Error(t, err)
}

func TestApplyRecordRejectsOutOfRangeScore(t *testing.T) {
	payload, err := json.Marshal(RecordPayload{Target: "bob", Dimension: DimensionQuality, Score: 1500})
	require.NoError(t, err)
	_, err = ApplyRecord(NewState(), "alice", payload, 1000, "hash-1", nil)
	require.Error(t, err)
}

// TestApplyRecordFlagsSelfReviewWithoutRejecting mirrors the package's
// non-destructive fraud-signal design: a self-review is recorded, not
// refused, and shows up later via FraudRisk.
func TestApplyRecordFlagsSelfReviewWithoutRejecting(t *testing.T) {
	payload, err := json.Marshal(RecordPayload{Target: "alice", Dimension: DimensionQuality, Score: 900, Reference: "order-1"})
	require.NoError(t, err)
	resolve := func(reference string) bool { return true }

	s, err := ApplyRecord(NewState(), "alice", payload, 1000, "hash-1", resolve)
	require.NoError(t, err)
	require.Equal(t, RiskMedium, FraudRisk(s, "alice", 1000))
}

func TestApplyRecordFlagsUnresolvedReference(t *testing.T) {
	payload, err := json.Marshal(RecordPayload{Target: "bob", Dimension: DimensionQuality, Score: 900, Reference: "missing-order"})
	require.NoError(t, err)
	resolve := func(reference string) bool { return false }

	s, err := ApplyRecord(NewState(), "alice", payload, 1000, "hash-1", resolve)
	require.NoError(t, err)
	require.False(t, s.Records["hash-1"].ReferenceResolved)
	require.Equal(t, RiskMedium, FraudRisk(s, "bob", 1000))
}

func TestDeriveUsesBaselineWithNoRecords(t *testing.T) {
	profile := Derive(NewState(), "nobody", 1000)
	require.Equal(t, baselineScore, profile.OverallScore)
	require.Equal(t, LevelTrusted, profile.Level)
	require.Equal(t, RiskLow, profile.Risk)
}

func TestDeriveWeightsRecentRecordsMoreThanDecayedOnes(t *testing.T) {
	s := NewState()
	s = s.insert(Record{Issuer: "a", Target: "bob", Dimension: DimensionQuality, Score: 1000, Ts: 0, EnvelopeHash: "h1", ReferenceResolved: true})
	s = s.insert(Record{Issuer: "b", Target: "bob", Dimension: DimensionQuality, Score: 0, Ts: 0, EnvelopeHash: "h2", ReferenceResolved: true})

	now := int64(0)
	require.Equal(t, 500, DimensionScore(s.RecordsFor("bob"), DimensionQuality, now))

	// After one full decay half-life the old score still matters, but a
	// fresh low score recorded now should pull the average down further
	// than the symmetric case above.
	s = s.insert(Record{Issuer: "c", Target: "bob", Dimension: DimensionQuality, Score: 0, Ts: halfLifeMs, EnvelopeHash: "h3", ReferenceResolved: true})
	require.Less(t, DimensionScore(s.RecordsFor("bob"), DimensionQuality, halfLifeMs), 400)
}

func TestFraudRiskDetectsCircularReviews(t *testing.T) {
	s := NewState()
	s = s.insert(Record{Issuer: "alice", Target: "bob", Dimension: DimensionQuality, Score: 900, Ts: 1000, EnvelopeHash: "h1", ReferenceResolved: true})
	s = s.insert(Record{Issuer: "bob", Target: "alice", Dimension: DimensionQuality, Score: 900, Ts: 1500, EnvelopeHash: "h2", ReferenceResolved: true})

	require.Equal(t, RiskMedium, FraudRisk(s, "bob", 2000))
	require.Equal(t, RiskMedium, FraudRisk(s, "alice", 2000))
}

func TestFraudRiskDetectsBurst(t *testing.T) {
	s := NewState()
	for i := 0; i < burstThreshold+1; i++ {
		s = s.insert(Record{Issuer: "spammer", Target: "bob", Dimension: DimensionQuality, Score: 900, Ts: 1000, EnvelopeHash: string(rune('a' + i)), ReferenceResolved: true})
	}
	require.Equal(t, RiskMedium, FraudRisk(s, "bob", 1000))
}
