package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the subscription tier stored on a workspace.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanAgency  Plan = "agency"
)

// String returns the string representation of the plan
func (p Plan) String() string {
	return string(p)
}

// IsValid checks if the plan is a known tier
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanAgency:
		return true
	default:
		return false
	}
}

// SubscriptionStatus mirrors the Stripe subscription lifecycle states the
// checkout/webhook collaborators write onto the workspace.
type SubscriptionStatus string

const (
	SubscriptionInactive          SubscriptionStatus = "inactive"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
)

// String returns the string representation of the status
func (s SubscriptionStatus) String() string {
	return string(s)
}

// Billable reports whether the subscription still grants paid-plan access.
// Trialing counts as billable: access continues during the grace trial and
// degrades on payment failure without an explicit downgrade.
func (s SubscriptionStatus) Billable() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

// Workspace is the billing/tenancy boundary owning tools, prompts, tasks and
// usage. The guard reads plan and subscription status; checkout and webhook
// collaborators own the mutations.
type Workspace struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	OwnerID            uuid.UUID          `db:"owner_id" json:"owner_id"`
	Name               string             `db:"name" json:"name"`
	Plan               Plan               `db:"plan" json:"plan"`
	SubscriptionStatus SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// Stripe references, written by the checkout flow. Never read by the guard.
	StripeCustomerID     *string `db:"stripe_customer_id" json:"-"`
	StripeSubscriptionID *string `db:"stripe_subscription_id" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
