// Package runner executes one task end to end: guard evaluation, provider
// call, output recording and task status transitions. Blocked runs never
// reach the provider.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
	"promptdeck/internal/logging"
	"promptdeck/internal/models"
	"promptdeck/internal/providers"
	"promptdeck/internal/utils"
)

// DefaultProviderTimeout bounds every upstream AI call.
const DefaultProviderTimeout = 30 * time.Second

// timeoutMessage is the user-visible message for a timed-out provider call,
// distinct from other call failures.
const timeoutMessage = "zaman aşımı"

// TaskStore is the slice of task persistence the runner needs.
type TaskStore interface {
	SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error
	GetTool(ctx context.Context, id uuid.UUID) (*models.Tool, error)
}

// OutputRecorder accepts completed outputs for asynchronous persistence.
type OutputRecorder interface {
	Enqueue(ctx context.Context, out *models.Output) error
}

// Result is what one run attempt produced. The decision is always present;
// the output only exists when the provider was actually invoked.
type Result struct {
	Decision *guard.Decision
	Output   *models.Output
	Text     string
}

// Failed reports whether the provider was invoked and did not succeed.
func (r *Result) Failed() bool {
	return r.Output != nil && r.Output.Status == models.OutputFailed
}

// Options configures optional runner collaborators.
type Options struct {
	Archive         logging.Sink
	ProviderTimeout time.Duration
	DefaultModel    string
	Now             func() time.Time
}

// Runner drives tasks through guard, provider and recording.
type Runner struct {
	guard    *guard.Guard
	tasks    TaskStore
	outputs  OutputRecorder
	provider providers.Provider
	archive  logging.Sink
	timeout  time.Duration
	model    string
	logger   *utils.Logger
	now      func() time.Time
}

// New creates a runner.
func New(g *guard.Guard, tasks TaskStore, outputs OutputRecorder, provider providers.Provider, opts Options) *Runner {
	if opts.Archive == nil {
		opts.Archive = logging.NewNoopSink()
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "gpt-4o-mini"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		guard:    g,
		tasks:    tasks,
		outputs:  outputs,
		provider: provider,
		archive:  opts.Archive,
		timeout:  opts.ProviderTimeout,
		model:    opts.DefaultModel,
		logger:   utils.NewLogger("runner"),
		now:      opts.Now,
	}
}

// Run evaluates the guard for one task and, if allowed, executes it against
// the provider. It returns an error only for infrastructure failures during
// evaluation; blocked and failed runs are normal results.
func (r *Runner) Run(ctx context.Context, ws *models.Workspace, task *models.Task) (*Result, error) {
	inv := guard.Invocation{
		TaskID:     task.ID,
		ToolID:     task.ToolID,
		ClientTag:  task.ClientTag,
		ProjectTag: task.ProjectTag,
	}

	decision, err := r.guard.Evaluate(ctx, ws, inv)
	if err != nil {
		return nil, err
	}

	r.archiveDecision(ws, task, decision)

	if !decision.Allowed {
		if err := r.tasks.SetStatus(ctx, task.ID, models.TaskFailed); err != nil {
			r.logger.Error("Failed to mark blocked task", "task_id", task.ID, "error", err)
		}
		return &Result{Decision: decision}, nil
	}

	if err := r.tasks.SetStatus(ctx, task.ID, models.TaskRunning); err != nil {
		r.logger.Error("Failed to mark task running", "task_id", task.ID, "error", err)
	}

	req, err := r.buildRequest(ctx, task)
	if err != nil {
		return nil, err
	}

	provCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := r.now()
	provResult, provErr := r.provider.Complete(provCtx, req)

	out := r.buildOutput(ws, task, req.Model, provResult, provErr, start)
	if err := r.outputs.Enqueue(ctx, out); err != nil {
		r.logger.Error("Failed to enqueue output", "task_id", task.ID, "error", err)
	}

	result := &Result{Decision: decision, Output: out}

	if provErr != nil {
		r.logger.Warn("Provider call failed", "task_id", task.ID, "error", provErr)
		if err := r.tasks.SetStatus(ctx, task.ID, models.TaskFailed); err != nil {
			r.logger.Error("Failed to mark failed task", "task_id", task.ID, "error", err)
		}
		return result, nil
	}

	result.Text = provResult.Text
	if err := r.tasks.SetStatus(ctx, task.ID, models.TaskDone); err != nil {
		r.logger.Error("Failed to mark done task", "task_id", task.ID, "error", err)
	}
	return result, nil
}

// buildRequest resolves the task's tool into a provider request.
func (r *Runner) buildRequest(ctx context.Context, task *models.Task) (providers.Request, error) {
	req := providers.Request{
		Model:  r.model,
		Prompt: task.Prompt,
	}

	if task.ToolID != nil {
		tool, err := r.tasks.GetTool(ctx, *task.ToolID)
		if err != nil {
			return providers.Request{}, err
		}
		if tool.ModelName != "" {
			req.Model = tool.ModelName
		}
		req.System = tool.SystemPrompt
	}

	return req, nil
}

// buildOutput converts a provider result (or failure) into the output row.
// Failed calls record zero cost and tokens; the provider may have billed for
// a partial generation, but unverifiable spend is never charged to the
// workspace.
func (r *Runner) buildOutput(ws *models.Workspace, task *models.Task, model string, provResult *providers.Result, provErr error, start time.Time) *models.Output {
	out := &models.Output{
		ID:          uuid.New(),
		WorkspaceID: ws.ID,
		TaskID:      task.ID,
		ToolID:      task.ToolID,
		ModelName:   model,
		ClientTag:   task.ClientTag,
		ProjectTag:  task.ProjectTag,
		DurationMS:  r.now().Sub(start).Milliseconds(),
		CreatedAt:   r.now().UTC(),
	}

	if provErr != nil {
		out.Status = models.OutputFailed
		if errors.Is(provErr, context.DeadlineExceeded) {
			out.ErrorMessage = timeoutMessage
		} else {
			out.ErrorMessage = provErr.Error()
		}
		return out
	}

	out.Status = models.OutputSucceeded
	out.CostUSD = utils.Float64Ptr(provResult.CostUSD)
	out.InputTokens = utils.Int64Ptr(provResult.InputTokens)
	out.OutputTokens = utils.Int64Ptr(provResult.OutputTokens)
	out.DurationMS = provResult.Duration.Milliseconds()
	return out
}

// archiveDecision ships the decision to the archive sink. Best effort.
func (r *Runner) archiveDecision(ws *models.Workspace, task *models.Task, d *guard.Decision) {
	rec := &logging.DecisionRecord{
		Timestamp:     r.now().UTC(),
		WorkspaceID:   ws.ID.String(),
		TaskID:        task.ID.String(),
		Allowed:       d.Allowed,
		Status:        d.Status,
		Code:          string(d.Code),
		Message:       d.Message,
		Plan:          string(d.Plan),
		EffectivePlan: string(d.EffectivePlan),
	}
	for _, w := range d.Warnings {
		rec.Warnings = append(rec.Warnings, w.Message)
	}
	if d.Usage != nil {
		rec.RequestsUsed = d.Usage.RequestsUsed
		rec.TokensUsed = d.Usage.TokensUsed
		rec.CostUSDUsed = d.Usage.CostUSDUsed
	}

	if err := r.archive.Enqueue(rec); err != nil {
		r.logger.Debug("Decision archive enqueue failed", "error", err)
	}
}
