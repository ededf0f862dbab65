package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
	"promptdeck/internal/middleware"
	"promptdeck/internal/models"
	"promptdeck/internal/runner"
	"promptdeck/internal/storage"
)

type fakeWorkspaceStore struct {
	workspaces map[uuid.UUID]*models.Workspace
}

func (s *fakeWorkspaceStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	if ws, ok := s.workspaces[id]; ok {
		return ws, nil
	}
	return nil, storage.ErrWorkspaceNotFound
}

type fakeTaskStore struct {
	tasks map[uuid.UUID]*models.Task
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if task, ok := s.tasks[id]; ok {
		return task, nil
	}
	return nil, storage.ErrTaskNotFound
}

type fakeRunner struct {
	result *runner.Result
	err    error
}

func (r *fakeRunner) Run(ctx context.Context, ws *models.Workspace, task *models.Task) (*runner.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func requestWithWorkspace(method, target string, body []byte, workspaceID uuid.UUID) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), middleware.WorkspaceIDKey, workspaceID)
	return req.WithContext(ctx)
}

func runRequestBody(t *testing.T, taskID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(RunRequest{TaskID: taskID})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return body
}

func allowedDecision(warnings []guard.Warning) *guard.Decision {
	return &guard.Decision{
		Allowed:       true,
		Status:        http.StatusOK,
		Code:          guard.CodeOK,
		Warnings:      warnings,
		Usage:         guard.NewSnapshot(),
		Plan:          models.PlanStarter,
		EffectivePlan: models.PlanStarter,
	}
}

func newRunFixture(ws *models.Workspace, task *models.Task, run *fakeRunner) *RunHandler {
	workspaces := &fakeWorkspaceStore{workspaces: map[uuid.UUID]*models.Workspace{ws.ID: ws}}
	tasks := &fakeTaskStore{tasks: map[uuid.UUID]*models.Task{}}
	if task != nil {
		tasks.tasks[task.ID] = task
	}
	return NewRunHandler(workspaces, tasks, run)
}

func TestRunHandler_Success(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter, SubscriptionStatus: models.SubscriptionActive}
	task := &models.Task{ID: uuid.New(), WorkspaceID: ws.ID, Prompt: "hello"}

	cost := 0.002
	run := &fakeRunner{result: &runner.Result{
		Decision: allowedDecision(nil),
		Output: &models.Output{
			ID:          uuid.New(),
			TaskID:      task.ID,
			WorkspaceID: ws.ID,
			Status:      models.OutputSucceeded,
			CostUSD:     &cost,
		},
		Text: "the answer",
	}}

	handler := newRunFixture(ws, task, run)

	req := requestWithWorkspace(http.MethodPost, "/v1/runs", runRequestBody(t, task.ID), ws.ID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.TaskID != task.ID || resp.Status != models.TaskDone {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if resp.Text != "the answer" {
		t.Errorf("Expected text in response, got %q", resp.Text)
	}
	if len(resp.UsageWarnings) != 0 {
		t.Errorf("Clean run must carry no warnings, got %v", resp.UsageWarnings)
	}
}

func TestRunHandler_SoftWarnedSuccessCarriesWarnings(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanFree, SubscriptionStatus: models.SubscriptionInactive}
	task := &models.Task{ID: uuid.New(), WorkspaceID: ws.ID, Prompt: "hello"}

	warnings := []guard.Warning{{
		Metric:  guard.MetricRequests,
		Used:    81,
		Limit:   100,
		Ratio:   0.81,
		Message: "requests usage reached 81% of the plan limit (81/100)",
	}}
	run := &fakeRunner{result: &runner.Result{
		Decision: allowedDecision(warnings),
		Output:   &models.Output{ID: uuid.New(), Status: models.OutputSucceeded},
		Text:     "ok",
	}}

	handler := newRunFixture(ws, task, run)

	req := requestWithWorkspace(http.MethodPost, "/v1/runs", runRequestBody(t, task.ID), ws.ID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(resp.UsageWarnings) != 1 || !strings.Contains(resp.UsageWarnings[0].Message, "81%") {
		t.Errorf("Expected 81%% warning in response, got %+v", resp.UsageWarnings)
	}
}

func TestRunHandler_BlockedMapsTo402(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanFree, SubscriptionStatus: models.SubscriptionInactive}
	task := &models.Task{ID: uuid.New(), WorkspaceID: ws.ID, Prompt: "hello"}

	run := &fakeRunner{result: &runner.Result{
		Decision: &guard.Decision{
			Allowed:       false,
			Status:        http.StatusPaymentRequired,
			Code:          guard.CodeLimitExceeded,
			Message:       "Plan limiti aşıldı: requests: 100/100",
			Usage:         guard.NewSnapshot(),
			Plan:          models.PlanFree,
			EffectivePlan: models.PlanFree,
			UpgradeCTAURL: "/dashboard/billing",
		},
	}}

	handler := newRunFixture(ws, task, run)

	req := requestWithWorkspace(http.MethodPost, "/v1/runs", runRequestBody(t, task.ID), ws.ID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("Expected status 402, got %d", w.Code)
	}

	var decision guard.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("Failed to unmarshal decision: %v", err)
	}
	if decision.Allowed {
		t.Error("Expected allowed=false in response")
	}
	if decision.Code != guard.CodeLimitExceeded {
		t.Errorf("Expected LIMIT_EXCEEDED, got %s", decision.Code)
	}
	if !strings.HasPrefix(decision.Message, "Plan limiti aşıldı: ") {
		t.Errorf("Expected block prefix, got %q", decision.Message)
	}
	if decision.UpgradeCTAURL == "" {
		t.Error("Blocked response must carry the upgrade CTA")
	}
}

func TestRunHandler_ProviderFailureMapsTo502(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter, SubscriptionStatus: models.SubscriptionActive}
	task := &models.Task{ID: uuid.New(), WorkspaceID: ws.ID, Prompt: "hello"}

	run := &fakeRunner{result: &runner.Result{
		Decision: allowedDecision(nil),
		Output: &models.Output{
			ID:           uuid.New(),
			Status:       models.OutputFailed,
			ErrorMessage: "zaman aşımı",
		},
	}}

	handler := newRunFixture(ws, task, run)

	req := requestWithWorkspace(http.MethodPost, "/v1/runs", runRequestBody(t, task.ID), ws.ID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", w.Code)
	}

	var resp RunErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Error != "zaman aşımı" {
		t.Errorf("Expected timeout message, got %q", resp.Error)
	}
	if resp.Status != models.TaskFailed {
		t.Errorf("Expected failed status, got %s", resp.Status)
	}
}

func TestRunHandler_UsageUnavailableMapsTo503(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter, SubscriptionStatus: models.SubscriptionActive}
	task := &models.Task{ID: uuid.New(), WorkspaceID: ws.ID, Prompt: "hello"}

	run := &fakeRunner{err: fmt.Errorf("%w: connection refused", guard.ErrUsageUnavailable)}

	handler := newRunFixture(ws, task, run)

	req := requestWithWorkspace(http.MethodPost, "/v1/runs", runRequestBody(t, task.ID), ws.ID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}

	// Internal details must not leak
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("Response leaks internals: %s", w.Body.String())
	}
}

func TestRunHandler_ForeignTaskIs404(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter, SubscriptionStatus: models.SubscriptionActive}
	otherTask := &models.Task{ID: uuid.New(), WorkspaceID: uuid.New(), Prompt: "secret"}

	handler := newRunFixture(ws, otherTask, &fakeRunner{})

	req := requestWithWorkspace(http.MethodPost, "/v1/runs", runRequestBody(t, otherTask.ID), ws.ID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 for another workspace's task, got %d", w.Code)
	}
}

func TestRunHandler_UnknownTaskIs404(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter, SubscriptionStatus: models.SubscriptionActive}

	handler := newRunFixture(ws, nil, &fakeRunner{})

	req := requestWithWorkspace(http.MethodPost, "/v1/runs", runRequestBody(t, uuid.New()), ws.ID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
}

func TestRunHandler_BadRequest(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter, SubscriptionStatus: models.SubscriptionActive}
	handler := newRunFixture(ws, nil, &fakeRunner{})

	t.Run("invalid json", func(t *testing.T) {
		req := requestWithWorkspace(http.MethodPost, "/v1/runs", []byte("{not json"), ws.ID)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("missing task id", func(t *testing.T) {
		req := requestWithWorkspace(http.MethodPost, "/v1/runs", []byte("{}"), ws.ID)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		req := requestWithWorkspace(http.MethodGet, "/v1/runs", nil, ws.ID)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", w.Code)
		}
	})
}
