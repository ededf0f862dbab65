package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
	"promptdeck/internal/utils"
)

// UsageReader aggregates the workspace's usage for a billing period.
type UsageReader interface {
	Aggregate(ctx context.Context, workspaceID uuid.UUID, periodStart time.Time) (*guard.Snapshot, error)
}

// UsageHandler serves GET /v1/usage: the current billing period's snapshot.
type UsageHandler struct {
	usage  UsageReader
	logger *utils.Logger
	now    func() time.Time
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usage UsageReader, now func() time.Time) *UsageHandler {
	if now == nil {
		now = time.Now
	}
	return &UsageHandler{
		usage:  usage,
		logger: utils.NewLogger("usage-handler"),
		now:    now,
	}
}

// UsageResponse carries the snapshot plus the period it covers.
type UsageResponse struct {
	PeriodStart time.Time       `json:"periodStart"`
	Usage       *guard.Snapshot `json:"usage"`
}

// ServeHTTP handles GET /v1/usage
func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	workspaceID, ok := workspaceFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing workspace")
		return
	}

	periodStart := guard.MonthStart(h.now())
	snapshot, err := h.usage.Aggregate(r.Context(), workspaceID, periodStart)
	if err != nil {
		if errors.Is(err, guard.ErrUsageUnavailable) {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "Usage data temporarily unavailable")
			return
		}
		h.logger.Error("Failed to aggregate usage", "workspace_id", workspaceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to aggregate usage")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, UsageResponse{
		PeriodStart: periodStart,
		Usage:       snapshot,
	})
}
