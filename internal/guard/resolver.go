package guard

import "promptdeck/internal/models"

// EffectivePlan derives the plan actually enforced this instant from the
// stored plan and the subscription status. A free workspace is always free.
// A paid plan holds only while the subscription is active or trialing; any
// other status (past_due, unpaid, canceled, incomplete, incomplete_expired,
// inactive) degrades limit evaluation to the free tier even though the
// stored plan is unchanged.
func EffectivePlan(plan models.Plan, status models.SubscriptionStatus) models.Plan {
	if plan == models.PlanFree {
		return models.PlanFree
	}
	if !status.Billable() {
		return models.PlanFree
	}
	return plan
}
