package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/models"
	"promptdeck/internal/storage"
	"promptdeck/internal/utils"
)

// BudgetStore is the budget persistence the HTTP layer needs.
type BudgetStore interface {
	ListBudgets(ctx context.Context, workspaceID uuid.UUID) ([]models.Budget, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Budget, error)
	Create(ctx context.Context, budget *models.Budget) error
	Update(ctx context.Context, budget *models.Budget) error
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}

// BudgetsHandler serves the /v1/budgets CRUD API.
type BudgetsHandler struct {
	budgets BudgetStore
	logger  *utils.Logger
	now     func() time.Time
}

// NewBudgetsHandler creates a new budgets handler
func NewBudgetsHandler(budgets BudgetStore) *BudgetsHandler {
	return &BudgetsHandler{
		budgets: budgets,
		logger:  utils.NewLogger("budgets-handler"),
		now:     time.Now,
	}
}

// BudgetRequest is the body for creating or updating a budget.
type BudgetRequest struct {
	ScopeType       models.BudgetScope `json:"scope_type"`
	ScopeID         *string            `json:"scope_id,omitempty"`
	MonthlyLimitUSD float64            `json:"monthly_limit_usd"`
}

// ServeHTTP routes /v1/budgets and /v1/budgets/{id} by method
func (h *BudgetsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := workspaceFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing workspace")
		return
	}

	idPart := strings.TrimPrefix(r.URL.Path, "/v1/budgets")
	idPart = strings.Trim(idPart, "/")

	if idPart == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r, workspaceID)
		case http.MethodPost:
			h.create(w, r, workspaceID)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	budgetID, err := uuid.Parse(idPart)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid budget ID")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.update(w, r, workspaceID, budgetID)
	case http.MethodDelete:
		h.delete(w, r, workspaceID, budgetID)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *BudgetsHandler) list(w http.ResponseWriter, r *http.Request, workspaceID uuid.UUID) {
	budgets, err := h.budgets.ListBudgets(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("Failed to list budgets", "workspace_id", workspaceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list budgets")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"budgets": budgets,
	})
}

func (h *BudgetsHandler) create(w http.ResponseWriter, r *http.Request, workspaceID uuid.UUID) {
	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	now := h.now().UTC()
	budget := &models.Budget{
		ID:              uuid.New(),
		WorkspaceID:     workspaceID,
		ScopeType:       req.ScopeType,
		ScopeID:         req.ScopeID,
		MonthlyLimitUSD: req.MonthlyLimitUSD,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.budgets.Create(r.Context(), budget); err != nil {
		if isBudgetValidationError(err) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to create budget", "workspace_id", workspaceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create budget")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, budget)
}

func (h *BudgetsHandler) update(w http.ResponseWriter, r *http.Request, workspaceID, budgetID uuid.UUID) {
	var req BudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	budget := &models.Budget{
		ID:              budgetID,
		WorkspaceID:     workspaceID,
		ScopeType:       req.ScopeType,
		ScopeID:         req.ScopeID,
		MonthlyLimitUSD: req.MonthlyLimitUSD,
		UpdatedAt:       h.now().UTC(),
	}

	if err := h.budgets.Update(r.Context(), budget); err != nil {
		if errors.Is(err, storage.ErrBudgetNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Budget not found")
			return
		}
		if isBudgetValidationError(err) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to update budget", "budget_id", budgetID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update budget")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, budget)
}

func (h *BudgetsHandler) delete(w http.ResponseWriter, r *http.Request, workspaceID, budgetID uuid.UUID) {
	if err := h.budgets.Delete(r.Context(), workspaceID, budgetID); err != nil {
		if errors.Is(err, storage.ErrBudgetNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Budget not found")
			return
		}
		h.logger.Error("Failed to delete budget", "budget_id", budgetID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to delete budget")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func isBudgetValidationError(err error) bool {
	return errors.Is(err, models.ErrBudgetInvalidScope) ||
		errors.Is(err, models.ErrBudgetMissingScopeID) ||
		errors.Is(err, models.ErrBudgetInvalidLimit)
}
