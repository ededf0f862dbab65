package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
	"promptdeck/internal/models"
	"promptdeck/internal/runner"
	"promptdeck/internal/storage"
	"promptdeck/internal/utils"
)

// WorkspaceStore loads workspaces for request handling.
type WorkspaceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
}

// TaskGetter loads tasks for request handling.
type TaskGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// RunExecutor drives one task through guard and provider.
type RunExecutor interface {
	Run(ctx context.Context, ws *models.Workspace, task *models.Task) (*runner.Result, error)
}

// RunHandler serves POST /v1/runs.
type RunHandler struct {
	workspaces WorkspaceStore
	tasks      TaskGetter
	runner     RunExecutor
	logger     *utils.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(workspaces WorkspaceStore, tasks TaskGetter, executor RunExecutor) *RunHandler {
	return &RunHandler{
		workspaces: workspaces,
		tasks:      tasks,
		runner:     executor,
		logger:     utils.NewLogger("run-handler"),
	}
}

// RunRequest is the body of POST /v1/runs.
type RunRequest struct {
	TaskID uuid.UUID `json:"taskId"`
}

// RunResponse is returned for an allowed run.
type RunResponse struct {
	TaskID        uuid.UUID         `json:"taskId"`
	Status        models.TaskStatus `json:"status"`
	Text          string            `json:"text,omitempty"`
	Output        *models.Output    `json:"output,omitempty"`
	UsageWarnings []guard.Warning   `json:"usageWarnings,omitempty"`
}

// RunErrorResponse is returned for a failed provider call.
type RunErrorResponse struct {
	TaskID uuid.UUID         `json:"taskId"`
	Status models.TaskStatus `json:"status"`
	Error  string            `json:"error"`
}

// ServeHTTP handles POST /v1/runs
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workspaceID, ok := workspaceFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing workspace")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == uuid.Nil {
		utils.RespondWithError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), req.TaskID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Task not found")
			return
		}
		h.logger.Error("Failed to load task", "task_id", req.TaskID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load task")
		return
	}
	if task.WorkspaceID != workspaceID {
		// Do not leak other workspaces' task IDs
		utils.RespondWithError(w, http.StatusNotFound, "Task not found")
		return
	}

	ws, err := h.workspaces.GetByID(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("Failed to load workspace", "workspace_id", workspaceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load workspace")
		return
	}

	result, err := h.runner.Run(r.Context(), ws, task)
	if err != nil {
		if errors.Is(err, guard.ErrUsageUnavailable) {
			h.logger.Error("Usage aggregation failed", "workspace_id", workspaceID, "error", err)
			utils.RespondWithError(w, http.StatusServiceUnavailable, "Usage data temporarily unavailable")
			return
		}
		h.logger.Error("Run failed", "task_id", task.ID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Run failed")
		return
	}

	if !result.Decision.Allowed {
		// The decision carries everything the dashboard needs to render the
		// block: code, message, usage snapshot and the upgrade CTA.
		utils.RespondWithJSON(w, result.Decision.Status, result.Decision)
		return
	}

	if result.Failed() {
		utils.RespondWithJSON(w, http.StatusBadGateway, RunErrorResponse{
			TaskID: task.ID,
			Status: models.TaskFailed,
			Error:  result.Output.ErrorMessage,
		})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, RunResponse{
		TaskID:        task.ID,
		Status:        models.TaskDone,
		Text:          result.Text,
		Output:        result.Output,
		UsageWarnings: result.Decision.Warnings,
	})
}
