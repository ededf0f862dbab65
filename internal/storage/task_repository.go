package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"promptdeck/internal/models"
)

// TaskRepository handles task and tool database operations.
type TaskRepository struct {
	db    *DB
	cache *LRUCache
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{
		db:    db,
		cache: db.GetToolCache(),
	}
}

// GetByID retrieves a task by id
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	query := `
		SELECT id, workspace_id, tool_id, prompt, status, client_tag, project_tag,
		       created_at, updated_at
		FROM tasks
		WHERE id = $1
	`
	err := r.db.conn.GetContext(ctx, &task, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// SetStatus updates the task's run lifecycle state
func (r *TaskRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.TaskStatus) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE tasks SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// GetTool retrieves a tool by id (with caching). Outputs inherit their tool
// attribution through the task, so the runner resolves tools on every run.
func (r *TaskRepository) GetTool(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	if cached, found := r.cache.Get(id.String()); found {
		return cached.(*models.Tool), nil
	}

	var tool models.Tool
	query := `
		SELECT id, workspace_id, name, model_name, system_prompt, created_at
		FROM tools
		WHERE id = $1
	`
	err := r.db.conn.GetContext(ctx, &tool, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrToolNotFound
		}
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}

	r.cache.Set(id.String(), &tool)
	return &tool, nil
}
