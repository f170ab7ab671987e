package dao

import "math"

// sqrtFloor returns floor(sqrt(n)) for a non-negative n, computed on the
// float64 approximation of an on-chain integer balance. Balances involved
// in voting power are small enough (token counts, not raw minimal units of
// an 18-decimal asset) that float64's 53 bits of mantissa is exact for every
// value this protocol can produce; see DESIGN.md for the bound.
func sqrtFloor(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return int64(math.Sqrt(float64(n)))
}

const fourYearsMs = int64(4 * 365 * 24 * 60 * 60 * 1000)

// lockupMultiplier returns the 1.0-3.0 multiplier a lockup duration earns,
// per the fixed linear schedule: 1.0 + min(duration/4y, 1) * 2.
func lockupMultiplier(lockupDurationMs int64) float64 {
	ratio := float64(lockupDurationMs) / float64(fourYearsMs)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return 1.0 + ratio*2
}

// reputationMultiplier returns the 1.0-2.0 multiplier a reputation score in
// [0, 1000] earns: 1.0 + clamp(score/1000, 0, 1).
func reputationMultiplier(reputationScore int) float64 {
	ratio := float64(reputationScore) / 1000
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return 1.0 + ratio
}

// VoterInputs are the ambient facts the engine gathers from wallet and
// reputation state to compute one voter's power on one proposal.
type VoterInputs struct {
	Balance          int64
	LockedTokens     int64
	LockupDurationMs int64
	ReputationScore  int
	// OutgoingDelegatedShares and IncomingDelegatedShares are already
	// resolved, walked-and-summed shares of base power, computed by the
	// caller from the delegation graph (see ResolveDelegatedShares).
	OutgoingDelegatedShares int64
	IncomingDelegatedShares int64
}

// BasePower computes a voter's power before incoming/outgoing delegation is
// applied, per the fixed evaluation order: quadratic token terms first,
// then the lockup multiplier on the locked share, then the reputation
// multiplier over the whole sum. The square roots are floored and the two
// multiplied terms are rounded to the nearest integer, to keep replay
// deterministic across platforms.
func BasePower(in VoterInputs) int64 {
	tokenPower := sqrtFloor(in.Balance)
	lockedPower := sqrtFloor(in.LockedTokens)
	lockupMul := lockupMultiplier(in.LockupDurationMs)
	repMul := reputationMultiplier(in.ReputationScore)

	lockedContribution := math.Round(float64(lockedPower) * (lockupMul - 1))
	subtotal := float64(tokenPower) + lockedContribution
	base := math.Round(subtotal * repMul)
	return int64(base)
}

// EffectivePower applies resolved delegated shares on top of base power.
// Both shares are themselves computed as a percentage of the delegator's
// own base power, rounded before being summed here.
func EffectivePower(in VoterInputs) int64 {
	return BasePower(in) - in.OutgoingDelegatedShares + in.IncomingDelegatedShares
}

// DelegatedShare computes the rounded power a delegator contributes to a
// delegate through one delegation edge.
func DelegatedShare(delegatorBasePower int64, percentage int) int64 {
	return int64(math.Round(float64(delegatorBasePower) * float64(percentage) / 100))
}
