package guard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/models"
	"promptdeck/internal/utils"
)

// Code classifies a guard decision.
type Code string

const (
	CodeOK             Code = "OK"
	CodeSoftWarning    Code = "LIMIT_SOFT_WARNING"
	CodeLimitExceeded  Code = "LIMIT_EXCEEDED"
	CodeBudgetExceeded Code = "BUDGET_EXCEEDED"
)

// Fixed user-facing prefixes distinguishing the two block cases.
const (
	planBlockPrefix   = "Plan limiti aşıldı: "
	budgetBlockPrefix = "Bütçe limiti aşıldı: "
)

// Decision is the guard's answer to one run attempt. Produced fresh per
// evaluation, never persisted as an entity; a GuardEvent audit row is written
// for blocks and soft warnings.
type Decision struct {
	Allowed       bool        `json:"allowed"`
	Status        int         `json:"status"`
	Code          Code        `json:"code"`
	Message       string      `json:"message"`
	Warnings      []Warning   `json:"warnings"`
	Usage         *Snapshot   `json:"usage"`
	Plan          models.Plan `json:"plan"`
	EffectivePlan models.Plan `json:"effectivePlan"`
	UpgradeCTAURL string      `json:"upgradeCtaUrl"`
}

// BudgetStore loads the workspace's user-defined budgets. A load failure is
// treated as "no budgets configured": budgets are an optional feature and
// fail open by design, which means a storage outage silently disables budget
// enforcement. See DESIGN.md.
type BudgetStore interface {
	ListBudgets(ctx context.Context, workspaceID uuid.UUID) ([]models.Budget, error)
}

// AuditSink records guard events. Failures must never abort a decision.
type AuditSink interface {
	Record(ctx context.Context, event *models.GuardEvent) error
}

// Notifier is the fire-and-forget soft-warning side-channel. No delivery
// guarantee is required.
type Notifier interface {
	NotifySoftWarning(ctx context.Context, workspaceID uuid.UUID, warnings []Warning)
}

// Guard composes aggregation, plan resolution, threshold evaluation and
// budget evaluation into a single allow/deny decision per run attempt.
type Guard struct {
	aggregator *Aggregator
	budgets    BudgetStore
	audit      AuditSink
	notifier   Notifier
	planLimits map[models.Plan]models.PlanLimits
	upgradeURL string
	logger     *utils.Logger

	// Now is the injected clock the month boundary is computed from.
	Now func() time.Time
}

// Options configures optional guard collaborators.
type Options struct {
	Audit      AuditSink
	Notifier   Notifier
	PlanLimits map[models.Plan]models.PlanLimits
	UpgradeURL string
	Now        func() time.Time
}

// New creates a run guard over the given stores.
func New(usage UsageStore, budgets BudgetStore, opts Options) *Guard {
	if opts.PlanLimits == nil {
		opts.PlanLimits = models.DefaultPlanLimits()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Guard{
		aggregator: NewAggregator(usage),
		budgets:    budgets,
		audit:      opts.Audit,
		notifier:   opts.Notifier,
		planLimits: opts.PlanLimits,
		upgradeURL: opts.UpgradeURL,
		logger:     utils.NewLogger("run-guard"),
		Now:        opts.Now,
	}
}

// Evaluate decides whether one run attempt may proceed. It is called once
// per attempt, before the provider is invoked; a blocked decision must keep
// the provider call from happening. Evaluate returns an error only for
// infrastructure failures (usage store unreachable); an exceeded limit is a
// normal negative decision, not an error.
//
// Concurrent evaluations for the same workspace can each pass a check that
// their combined spend would fail. That race is accepted: enforcement is
// eventually consistent, with the 80% soft warning as the early signal.
func (g *Guard) Evaluate(ctx context.Context, ws *models.Workspace, inv Invocation) (*Decision, error) {
	periodStart := MonthStart(g.Now())

	usage, err := g.aggregator.Aggregate(ctx, ws.ID, periodStart)
	if err != nil {
		return nil, err
	}

	effective := EffectivePlan(ws.Plan, ws.SubscriptionStatus)
	thresholds := EvaluateThresholds(g.planLimits[effective], usage)

	budgets, err := g.budgets.ListBudgets(ctx, ws.ID)
	if err != nil {
		g.logger.Warn("Budget load failed, enforcing without budgets", "workspace", ws.ID, "error", err)
		budgets = nil
	}
	budgetReasons := EvaluateBudgets(budgets, usage, inv)

	decision := &Decision{
		Allowed:       true,
		Status:        http.StatusOK,
		Code:          CodeOK,
		Warnings:      thresholds.Warnings,
		Usage:         usage,
		Plan:          ws.Plan,
		EffectivePlan: effective,
		UpgradeCTAURL: g.upgradeURL,
	}

	switch {
	case len(budgetReasons) > 0 || len(thresholds.HardReasons) > 0:
		decision.Allowed = false
		decision.Status = http.StatusPaymentRequired
		// Budget violations take precedence in the reported code even when
		// plan reasons exist alongside them.
		if len(budgetReasons) > 0 {
			decision.Code = CodeBudgetExceeded
			decision.Message = budgetBlockPrefix + strings.Join(append(budgetReasons, thresholds.HardReasons...), "; ")
		} else {
			decision.Code = CodeLimitExceeded
			decision.Message = planBlockPrefix + strings.Join(thresholds.HardReasons, "; ")
		}
		g.recordEvent(ctx, ws, inv, models.GuardEventBlocked, decision)

	case len(thresholds.Warnings) > 0:
		decision.Code = CodeSoftWarning
		decision.Message = joinWarnings(thresholds.Warnings)
		g.recordEvent(ctx, ws, inv, models.GuardEventSoftWarning, decision)
		if g.notifier != nil {
			g.notifier.NotifySoftWarning(ctx, ws.ID, thresholds.Warnings)
		}
	}

	return decision, nil
}

// recordEvent writes one audit row. Failures are logged locally and
// swallowed: the audit trail is observability, not correctness.
func (g *Guard) recordEvent(ctx context.Context, ws *models.Workspace, inv Invocation, eventType models.GuardEventType, d *Decision) {
	if g.audit == nil {
		return
	}

	event := &models.GuardEvent{
		ID:          uuid.New(),
		WorkspaceID: ws.ID,
		TaskID:      inv.TaskID,
		ToolID:      inv.ToolID,
		EventType:   eventType,
		Reason:      d.Message,
		Metadata: models.JSONB{
			"code":           string(d.Code),
			"plan":           ws.Plan.String(),
			"effective_plan": d.EffectivePlan.String(),
			"requests_used":  d.Usage.RequestsUsed,
			"tokens_used":    d.Usage.TokensUsed,
			"cost_usd_used":  d.Usage.CostUSDUsed,
		},
		CreatedAt: g.Now(),
	}

	if err := g.audit.Record(ctx, event); err != nil {
		g.logger.Error("Failed to record guard event", "workspace", ws.ID, "type", eventType, "error", err)
	}
}

func joinWarnings(warnings []Warning) string {
	msgs := make([]string, len(warnings))
	for i, w := range warnings {
		msgs[i] = w.Message
	}
	return strings.Join(msgs, "; ")
}
