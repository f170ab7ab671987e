package wallet

// MilestoneChecker reports whether the named milestone of a contract has
// reached the "approved" state, satisfying a milestone release condition.
// The wallet package cannot import the contracts package directly (contracts
// depends on wallet for escrow state, not the other way around), so the
// engine injects this callback instead.
type MilestoneChecker func(contractID, milestoneID string) bool

// ConditionContext carries the ambient facts a release rule predicate may
// need beyond the escrow itself.
type ConditionContext struct {
	Now              int64
	MilestoneApproved MilestoneChecker
	// Approvals lists the DIDs that have signed off the specific release
	// attempt being authorized (for multi_sig rules).
	Approvals []string
}

// ConditionMet is the pure predicate authorizing a release event against a
// declared release rule and the current ambient facts.
func ConditionMet(rule ReleaseRule, ctx ConditionContext) bool {
	switch rule.Kind {
	case ConditionManual:
		// Manual rules are satisfied by the mere existence of an explicit,
		// separately-authorized release event; the reducer's signer check
		// (depositor or beneficiary) is what actually gates it, so the
		// predicate itself always holds.
		return true
	case ConditionTimeAfter:
		return ctx.Now >= rule.TimeAfter
	case ConditionMilestone:
		if ctx.MilestoneApproved == nil {
			return false
		}
		return ctx.MilestoneApproved(rule.ContractID, rule.MilestoneID)
	case ConditionMultiSig:
		if rule.Threshold <= 0 {
			return false
		}
		allowed := make(map[string]bool, len(rule.Signers))
		for _, s := range rule.Signers {
			allowed[s] = true
		}
		count := 0
		seen := make(map[string]bool, len(ctx.Approvals))
		for _, a := range ctx.Approvals {
			if allowed[a] && !seen[a] {
				seen[a] = true
				count++
			}
		}
		return count >= rule.Threshold
	case ConditionCompound:
		if len(rule.Conditions) == 0 {
			return false
		}
		switch rule.Op {
		case CompoundOR:
			for _, sub := range rule.Conditions {
				if ConditionMet(sub, ctx) {
					return true
				}
			}
			return false
		default: // CompoundAND is the default for an unset/invalid op
			for _, sub := range rule.Conditions {
				if !ConditionMet(sub, ctx) {
					return false
				}
			}
			return true
		}
	default:
		return false
	}
}
