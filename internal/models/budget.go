package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BudgetScope selects what slice of workspace spend a budget caps.
type BudgetScope string

const (
	BudgetScopeWorkspace BudgetScope = "workspace"
	BudgetScopeTool      BudgetScope = "tool"
	BudgetScopeTag       BudgetScope = "tag"
)

// IsValid checks if the scope is a known budget scope
func (s BudgetScope) IsValid() bool {
	switch s {
	case BudgetScopeWorkspace, BudgetScopeTool, BudgetScopeTag:
		return true
	default:
		return false
	}
}

var (
	// ErrBudgetInvalidScope is returned when a budget has an unknown scope type
	ErrBudgetInvalidScope = errors.New("invalid budget scope type")

	// ErrBudgetMissingScopeID is returned when a tool or tag budget lacks a scope id
	ErrBudgetMissingScopeID = errors.New("tool and tag budgets require a scope id")

	// ErrBudgetInvalidLimit is returned when the monthly limit is not positive
	ErrBudgetInvalidLimit = errors.New("monthly limit must be positive")
)

// Budget is a user-defined monthly spend cap, narrower than or orthogonal to
// the plan's built-in caps. ScopeID is NULL for workspace scope, a tool id
// for tool scope, a tag string for tag scope.
type Budget struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	WorkspaceID     uuid.UUID   `db:"workspace_id" json:"workspace_id"`
	ScopeType       BudgetScope `db:"scope_type" json:"scope_type"`
	ScopeID         *string     `db:"scope_id" json:"scope_id,omitempty"`
	MonthlyLimitUSD float64     `db:"monthly_limit_usd" json:"monthly_limit_usd"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// Validate checks the budget's invariants before it is persisted.
func (b *Budget) Validate() error {
	if !b.ScopeType.IsValid() {
		return ErrBudgetInvalidScope
	}
	if b.ScopeType != BudgetScopeWorkspace && (b.ScopeID == nil || *b.ScopeID == "") {
		return ErrBudgetMissingScopeID
	}
	if b.MonthlyLimitUSD <= 0 {
		return ErrBudgetInvalidLimit
	}
	return nil
}
