package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlan_IsValid(t *testing.T) {
	assert.True(t, PlanFree.IsValid())
	assert.True(t, PlanStarter.IsValid())
	assert.True(t, PlanAgency.IsValid())
	assert.False(t, Plan("enterprise").IsValid())
	assert.False(t, Plan("").IsValid())
}

func TestSubscriptionStatus_Billable(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   bool
	}{
		{SubscriptionActive, true},
		{SubscriptionTrialing, true},
		{SubscriptionInactive, false},
		{SubscriptionPastDue, false},
		{SubscriptionUnpaid, false},
		{SubscriptionCanceled, false},
		{SubscriptionIncomplete, false},
		{SubscriptionIncompleteExpired, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Billable())
		})
	}
}

func TestDefaultPlanLimits(t *testing.T) {
	limits := DefaultPlanLimits()

	free := limits[PlanFree]
	assert.EqualValues(t, 100, *free.RequestsPerMonth)
	assert.EqualValues(t, 200_000, *free.TokensPerMonth)
	assert.EqualValues(t, 5, *free.CostUSDPerMonth)
	assert.False(t, free.Unlimited())

	starter := limits[PlanStarter]
	assert.EqualValues(t, 2_000, *starter.RequestsPerMonth)
	assert.EqualValues(t, 5_000_000, *starter.TokensPerMonth)
	assert.EqualValues(t, 100, *starter.CostUSDPerMonth)

	agency := limits[PlanAgency]
	assert.True(t, agency.Unlimited())
}
