package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"promptdeck/internal/models"
)

// GuardEventRepository appends run-guard audit rows. The guard swallows
// write failures, so this repository only has to report them.
type GuardEventRepository struct {
	db *DB
}

// NewGuardEventRepository creates a new guard event repository
func NewGuardEventRepository(db *DB) *GuardEventRepository {
	return &GuardEventRepository{db: db}
}

// Record appends one audit row
func (r *GuardEventRepository) Record(ctx context.Context, event *models.GuardEvent) error {
	query := `
		INSERT INTO guard_events (id, workspace_id, task_id, tool_id, event_type, reason, metadata, created_at)
		VALUES (:id, :workspace_id, :task_id, :tool_id, :event_type, :reason, :metadata, :created_at)
	`
	if _, err := r.db.conn.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to record guard event: %w", err)
	}
	return nil
}

// ListRecent returns the latest audit rows for a workspace, newest first.
func (r *GuardEventRepository) ListRecent(ctx context.Context, workspaceID uuid.UUID, limit int) ([]models.GuardEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []models.GuardEvent
	query := `
		SELECT id, workspace_id, task_id, tool_id, event_type, reason, metadata, created_at
		FROM guard_events
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.conn.SelectContext(ctx, &events, query, workspaceID, limit); err != nil {
		return nil, fmt.Errorf("failed to list guard events: %w", err)
	}
	return events, nil
}
