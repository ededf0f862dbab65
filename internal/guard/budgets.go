package guard

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"promptdeck/internal/models"
)

// Invocation identifies what a single run attempt targets, for matching
// tool- and tag-scoped budgets. A tool budget for tool A never blocks a run
// using tool B.
type Invocation struct {
	TaskID     uuid.UUID
	ToolID     *uuid.UUID
	ClientTag  *string
	ProjectTag *string
}

// EvaluateBudgets checks every budget whose scope applies to this invocation
// against the aggregated spend. It returns one violation reason per budget
// with spent >= limit; an empty slice means no budget blocks. Budgets with a
// non-positive limit are ignored.
func EvaluateBudgets(budgets []models.Budget, usage *Snapshot, inv Invocation) []string {
	var reasons []string
	tagKeys := invocationTagKeys(inv.ClientTag, inv.ProjectTag)

	for i := range budgets {
		b := &budgets[i]
		if b.MonthlyLimitUSD <= 0 {
			continue
		}

		spent, applies := budgetSpend(b, usage, inv, tagKeys)
		if !applies {
			continue
		}

		if spent >= b.MonthlyLimitUSD {
			reasons = append(reasons, fmt.Sprintf("%s budget: %.4f/%.4f USD",
				budgetLabel(b), spent, b.MonthlyLimitUSD))
		}
	}
	return reasons
}

// budgetSpend resolves the spend a budget is compared against, and whether
// the budget applies to this invocation at all.
func budgetSpend(b *models.Budget, usage *Snapshot, inv Invocation, tagKeys []string) (float64, bool) {
	switch b.ScopeType {
	case models.BudgetScopeWorkspace:
		return usage.CostUSDUsed, true

	case models.BudgetScopeTool:
		if b.ScopeID == nil || inv.ToolID == nil || *b.ScopeID != inv.ToolID.String() {
			return 0, false
		}
		return usage.ByTool[*b.ScopeID], true

	case models.BudgetScopeTag:
		if b.ScopeID == nil || !slices.Contains(tagKeys, *b.ScopeID) {
			return 0, false
		}
		return usage.ByTag[*b.ScopeID], true

	default:
		return 0, false
	}
}

func budgetLabel(b *models.Budget) string {
	switch b.ScopeType {
	case models.BudgetScopeWorkspace:
		return "workspace"
	case models.BudgetScopeTool:
		return fmt.Sprintf("tool %s", *b.ScopeID)
	case models.BudgetScopeTag:
		return fmt.Sprintf("tag %q", *b.ScopeID)
	default:
		return string(b.ScopeType)
	}
}
