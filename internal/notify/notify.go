// Package notify delivers soft-warning notifications raised by the guard.
// Delivery is best effort: a run is never failed or delayed because a
// notification could not be sent.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
	"promptdeck/internal/utils"
)

// LogNotifier writes soft warnings to the application log. Used when no
// webhook is configured.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: utils.NewLogger("notify")}
}

func (n *LogNotifier) NotifySoftWarning(ctx context.Context, workspaceID uuid.UUID, warnings []guard.Warning) {
	for _, w := range warnings {
		n.logger.Warn("Usage approaching plan limit",
			"workspace_id", workspaceID,
			"metric", w.Metric,
			"used", w.Used,
			"limit", w.Limit,
			"message", w.Message,
		)
	}
}

// Event is the JSON payload delivered to the configured webhook.
type Event struct {
	Type        string          `json:"type"`
	WorkspaceID uuid.UUID       `json:"workspaceId"`
	Warnings    []guard.Warning `json:"warnings"`
	Timestamp   time.Time       `json:"timestamp"`
}

const eventTypeSoftWarning = "usage.soft_warning"
