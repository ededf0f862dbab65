package models

// PlanLimits holds the built-in monthly caps for a plan. A nil field means
// the metric is unlimited on that plan.
type PlanLimits struct {
	RequestsPerMonth *int64
	TokensPerMonth   *int64
	CostUSDPerMonth  *float64
}

// Unlimited reports whether the plan carries no finite cap at all.
func (l PlanLimits) Unlimited() bool {
	return l.RequestsPerMonth == nil && l.TokensPerMonth == nil && l.CostUSDPerMonth == nil
}

func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

// DefaultPlanLimits returns the built-in plan limit table. Defined once at
// process start; config may override individual values via environment.
func DefaultPlanLimits() map[Plan]PlanLimits {
	return map[Plan]PlanLimits{
		PlanFree: {
			RequestsPerMonth: int64Ptr(100),
			TokensPerMonth:   int64Ptr(200_000),
			CostUSDPerMonth:  float64Ptr(5),
		},
		PlanStarter: {
			RequestsPerMonth: int64Ptr(2_000),
			TokensPerMonth:   int64Ptr(5_000_000),
			CostUSDPerMonth:  float64Ptr(100),
		},
		PlanAgency: {
			// No built-in caps; budgets still apply.
		},
	}
}

// DefaultPlanPricesUSD maps each plan to its monthly price. Consumed only by
// the checkout flow, never by the guard.
func DefaultPlanPricesUSD() map[Plan]float64 {
	return map[Plan]float64{
		PlanFree:    0,
		PlanStarter: 29,
		PlanAgency:  99,
	}
}
