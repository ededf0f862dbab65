package runner

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
	"promptdeck/internal/logging"
	"promptdeck/internal/models"
	"promptdeck/internal/providers"
	"promptdeck/internal/utils"
)

type fakeUsageStore struct {
	outputs []models.Output
	err     error
}

func (s *fakeUsageStore) ListOutputsSince(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]models.Output, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.outputs, nil
}

type fakeBudgetStore struct {
	budgets []models.Budget
}

func (s *fakeBudgetStore) ListBudgets(ctx context.Context, workspaceID uuid.UUID) ([]models.Budget, error) {
	return s.budgets, nil
}

type fakeTaskStore struct {
	mu       sync.Mutex
	statuses []models.TaskStatus
	tool     *models.Tool
	toolErr  error
}

func (s *fakeTaskStore) SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeTaskStore) GetTool(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	if s.toolErr != nil {
		return nil, s.toolErr
	}
	return s.tool, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	outputs []*models.Output
}

func (r *fakeRecorder) Enqueue(ctx context.Context, out *models.Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, out)
	return nil
}

type fakeProvider struct {
	result  *providers.Result
	err     error
	delay   time.Duration
	lastReq providers.Request
	calls   int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req providers.Request) (*providers.Result, error) {
	p.calls++
	p.lastReq = req

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type captureSink struct {
	mu      sync.Mutex
	records []*logging.DecisionRecord
}

func (s *captureSink) Enqueue(rec *logging.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) Shutdown(ctx context.Context) error { return nil }

func testWorkspace(plan models.Plan) *models.Workspace {
	return &models.Workspace{
		ID:                 uuid.New(),
		Plan:               plan,
		SubscriptionStatus: models.SubscriptionActive,
	}
}

func testTask(wsID uuid.UUID) *models.Task {
	return &models.Task{
		ID:          uuid.New(),
		WorkspaceID: wsID,
		Prompt:      "summarize this",
		Status:      models.TaskPending,
	}
}

// nOutputs builds n prior outputs of the given cost each.
func nOutputs(n int, cost float64) []models.Output {
	outputs := make([]models.Output, n)
	for i := range outputs {
		outputs[i] = models.Output{
			ID:      uuid.New(),
			CostUSD: utils.Float64Ptr(cost),
		}
	}
	return outputs
}

type runnerFixture struct {
	runner   *Runner
	tasks    *fakeTaskStore
	recorder *fakeRecorder
	provider *fakeProvider
	archive  *captureSink
}

func newFixture(usage *fakeUsageStore, provider *fakeProvider, timeout time.Duration) *runnerFixture {
	g := guard.New(usage, &fakeBudgetStore{}, guard.Options{
		Now: func() time.Time { return time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC) },
	})

	tasks := &fakeTaskStore{}
	recorder := &fakeRecorder{}
	archive := &captureSink{}

	r := New(g, tasks, recorder, provider, Options{
		Archive:         archive,
		ProviderTimeout: timeout,
	})

	return &runnerFixture{runner: r, tasks: tasks, recorder: recorder, provider: provider, archive: archive}
}

func TestRun_AllowedSuccess(t *testing.T) {
	provider := &fakeProvider{
		result: &providers.Result{
			Text:         "done",
			InputTokens:  100,
			OutputTokens: 40,
			CostUSD:      0.0015,
			Duration:     120 * time.Millisecond,
		},
	}
	f := newFixture(&fakeUsageStore{outputs: nOutputs(5, 0.01)}, provider, time.Second)

	ws := testWorkspace(models.PlanStarter)
	task := testTask(ws.ID)

	result, err := f.runner.Run(context.Background(), ws, task)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Decision.Allowed {
		t.Fatalf("Expected allowed decision, got %+v", result.Decision)
	}
	if result.Text != "done" {
		t.Errorf("Expected text 'done', got %q", result.Text)
	}
	if result.Failed() {
		t.Error("Expected successful run")
	}

	if len(f.recorder.outputs) != 1 {
		t.Fatalf("Expected 1 recorded output, got %d", len(f.recorder.outputs))
	}
	out := f.recorder.outputs[0]
	if out.Status != models.OutputSucceeded {
		t.Errorf("Expected succeeded output, got %s", out.Status)
	}
	if out.CostUSD == nil || *out.CostUSD != 0.0015 {
		t.Errorf("Expected cost 0.0015, got %v", out.CostUSD)
	}
	if out.TotalTokens() != 140 {
		t.Errorf("Expected 140 total tokens, got %d", out.TotalTokens())
	}

	wantStatuses := []models.TaskStatus{models.TaskRunning, models.TaskDone}
	if len(f.tasks.statuses) != 2 || f.tasks.statuses[0] != wantStatuses[0] || f.tasks.statuses[1] != wantStatuses[1] {
		t.Errorf("Expected statuses %v, got %v", wantStatuses, f.tasks.statuses)
	}

	if len(f.archive.records) != 1 || !f.archive.records[0].Allowed {
		t.Errorf("Expected one allowed archive record, got %+v", f.archive.records)
	}
}

func TestRun_BlockedNeverReachesProvider(t *testing.T) {
	// Free plan allows 100 requests; usage already at the cap.
	provider := &fakeProvider{result: &providers.Result{Text: "x"}}
	f := newFixture(&fakeUsageStore{outputs: nOutputs(100, 0.001)}, provider, time.Second)

	ws := testWorkspace(models.PlanFree)
	task := testTask(ws.ID)

	result, err := f.runner.Run(context.Background(), ws, task)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Decision.Allowed {
		t.Fatal("Expected blocked decision")
	}
	if result.Decision.Status != http.StatusPaymentRequired {
		t.Errorf("Expected status 402, got %d", result.Decision.Status)
	}
	if provider.calls != 0 {
		t.Errorf("Blocked run must not reach the provider, got %d calls", provider.calls)
	}
	if result.Output != nil {
		t.Errorf("Blocked run must not record an output, got %+v", result.Output)
	}

	if len(f.tasks.statuses) != 1 || f.tasks.statuses[0] != models.TaskFailed {
		t.Errorf("Expected task marked failed, got %v", f.tasks.statuses)
	}

	if len(f.archive.records) != 1 || f.archive.records[0].Allowed {
		t.Errorf("Expected one blocked archive record, got %+v", f.archive.records)
	}
}

func TestRun_ProviderTimeout(t *testing.T) {
	provider := &fakeProvider{
		result: &providers.Result{Text: "too late"},
		delay:  500 * time.Millisecond,
	}
	f := newFixture(&fakeUsageStore{}, provider, 20*time.Millisecond)

	ws := testWorkspace(models.PlanStarter)
	task := testTask(ws.ID)

	result, err := f.runner.Run(context.Background(), ws, task)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Failed() {
		t.Fatal("Expected failed run on timeout")
	}

	out := result.Output
	if out.ErrorMessage != "zaman aşımı" {
		t.Errorf("Expected timeout message, got %q", out.ErrorMessage)
	}
	if out.CostUSD != nil || out.InputTokens != nil || out.OutputTokens != nil {
		t.Errorf("Timed-out call must record zero usage, got %+v", out)
	}

	if len(f.recorder.outputs) != 1 {
		t.Errorf("Failed call must still record an output, got %d", len(f.recorder.outputs))
	}

	last := f.tasks.statuses[len(f.tasks.statuses)-1]
	if last != models.TaskFailed {
		t.Errorf("Expected task failed, got %v", f.tasks.statuses)
	}
}

func TestRun_ProviderErrorKeepsOwnMessage(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider returned status 429")}
	f := newFixture(&fakeUsageStore{}, provider, time.Second)

	ws := testWorkspace(models.PlanStarter)
	task := testTask(ws.ID)

	result, err := f.runner.Run(context.Background(), ws, task)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Failed() {
		t.Fatal("Expected failed run")
	}
	if result.Output.ErrorMessage == "zaman aşımı" {
		t.Error("Non-timeout failures must keep their own message")
	}
	if !strings.Contains(result.Output.ErrorMessage, "429") {
		t.Errorf("Expected provider message, got %q", result.Output.ErrorMessage)
	}
}

func TestRun_UsageUnavailablePropagates(t *testing.T) {
	provider := &fakeProvider{}
	f := newFixture(&fakeUsageStore{err: errors.New("connection refused")}, provider, time.Second)

	ws := testWorkspace(models.PlanStarter)
	task := testTask(ws.ID)

	_, err := f.runner.Run(context.Background(), ws, task)
	if err == nil {
		t.Fatal("Expected error when usage is unavailable")
	}
	if !errors.Is(err, guard.ErrUsageUnavailable) {
		t.Errorf("Expected ErrUsageUnavailable, got %v", err)
	}

	if provider.calls != 0 {
		t.Error("Provider must not be called when usage is unknown")
	}
	if len(f.tasks.statuses) != 0 {
		t.Errorf("Task status must not change, got %v", f.tasks.statuses)
	}
}

func TestRun_ToolResolvesModelAndSystemPrompt(t *testing.T) {
	provider := &fakeProvider{result: &providers.Result{Text: "ok"}}
	f := newFixture(&fakeUsageStore{}, provider, time.Second)

	toolID := uuid.New()
	f.tasks.tool = &models.Tool{
		ID:           toolID,
		ModelName:    "gpt-4-turbo",
		SystemPrompt: "you are a copywriter",
	}

	ws := testWorkspace(models.PlanAgency)
	task := testTask(ws.ID)
	task.ToolID = &toolID

	if _, err := f.runner.Run(context.Background(), ws, task); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if provider.lastReq.Model != "gpt-4-turbo" {
		t.Errorf("Expected tool model, got %s", provider.lastReq.Model)
	}
	if provider.lastReq.System != "you are a copywriter" {
		t.Errorf("Expected tool system prompt, got %q", provider.lastReq.System)
	}

	// Output inherits the tool attribution
	if len(f.recorder.outputs) != 1 || f.recorder.outputs[0].ToolID == nil || *f.recorder.outputs[0].ToolID != toolID {
		t.Errorf("Expected output attributed to tool %s", toolID)
	}
}

func TestRun_DefaultModelWithoutTool(t *testing.T) {
	provider := &fakeProvider{result: &providers.Result{Text: "ok"}}
	f := newFixture(&fakeUsageStore{}, provider, time.Second)

	ws := testWorkspace(models.PlanStarter)
	task := testTask(ws.ID)

	if _, err := f.runner.Run(context.Background(), ws, task); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if provider.lastReq.Model != "gpt-4o-mini" {
		t.Errorf("Expected default model, got %s", provider.lastReq.Model)
	}
}
