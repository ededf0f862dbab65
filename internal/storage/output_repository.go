package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/models"
)

// OutputRepository handles the append-only output (usage record) log.
type OutputRepository struct {
	db *DB
}

// NewOutputRepository creates a new output repository
func NewOutputRepository(db *DB) *OutputRepository {
	return &OutputRepository{db: db}
}

const outputColumns = `
	id, workspace_id, task_id, tool_id, model_name, status,
	cost_usd, input_tokens, output_tokens,
	client_tag, project_tag,
	duration_ms, error_message, created_at
`

// Insert appends one output row. Outputs are immutable once written.
func (r *OutputRepository) Insert(ctx context.Context, out *models.Output) error {
	query := `
		INSERT INTO outputs (` + outputColumns + `)
		VALUES (:id, :workspace_id, :task_id, :tool_id, :model_name, :status,
		        :cost_usd, :input_tokens, :output_tokens,
		        :client_tag, :project_tag,
		        :duration_ms, :error_message, :created_at)
	`
	if _, err := r.db.conn.NamedExecContext(ctx, query, out); err != nil {
		return fmt.Errorf("failed to insert output: %w", err)
	}
	return nil
}

// InsertBatch appends multiple outputs in a single transaction.
func (r *OutputRepository) InsertBatch(ctx context.Context, outputs []*models.Output) error {
	if len(outputs) == 0 {
		return nil
	}

	tx, err := r.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO outputs (` + outputColumns + `)
		VALUES (:id, :workspace_id, :task_id, :tool_id, :model_name, :status,
		        :cost_usd, :input_tokens, :output_tokens,
		        :client_tag, :project_tag,
		        :duration_ms, :error_message, :created_at)
	`
	for _, out := range outputs {
		if _, err := tx.NamedExecContext(ctx, query, out); err != nil {
			return fmt.Errorf("failed to insert output %s: %w", out.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit output batch: %w", err)
	}
	return nil
}

// ListOutputsSince returns all outputs for a workspace created on or after
// the given timestamp. This is the guard's usage-store read.
func (r *OutputRepository) ListOutputsSince(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]models.Output, error) {
	var outputs []models.Output
	query := `
		SELECT ` + outputColumns + `
		FROM outputs
		WHERE workspace_id = $1 AND created_at >= $2
		ORDER BY created_at ASC
	`
	if err := r.db.conn.SelectContext(ctx, &outputs, query, workspaceID, since); err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	return outputs, nil
}

// ListByTask returns the outputs produced by one task, newest first.
func (r *OutputRepository) ListByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]models.Output, error) {
	if limit <= 0 {
		limit = 50
	}

	var outputs []models.Output
	query := `
		SELECT ` + outputColumns + `
		FROM outputs
		WHERE task_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.conn.SelectContext(ctx, &outputs, query, taskID, limit); err != nil {
		return nil, fmt.Errorf("failed to list task outputs: %w", err)
	}
	return outputs, nil
}
