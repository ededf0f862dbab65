package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"promptdeck/internal/models"
)

// BudgetRepository handles budget database operations.
type BudgetRepository struct {
	db *DB
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// ListBudgets returns every budget configured for a workspace. This is the
// guard's budget-store read; the guard treats a failure here as "no budgets
// configured" (fail-open), so this method just reports the error honestly.
func (r *BudgetRepository) ListBudgets(ctx context.Context, workspaceID uuid.UUID) ([]models.Budget, error) {
	var budgets []models.Budget
	query := `
		SELECT id, workspace_id, scope_type, scope_id, monthly_limit_usd,
		       created_at, updated_at
		FROM budgets
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`
	if err := r.db.conn.SelectContext(ctx, &budgets, query, workspaceID); err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	return budgets, nil
}

// GetByID retrieves a budget by id
func (r *BudgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Budget, error) {
	var budget models.Budget
	query := `
		SELECT id, workspace_id, scope_type, scope_id, monthly_limit_usd,
		       created_at, updated_at
		FROM budgets
		WHERE id = $1
	`
	err := r.db.conn.GetContext(ctx, &budget, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBudgetNotFound
		}
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	return &budget, nil
}

// Create persists a new budget
func (r *BudgetRepository) Create(ctx context.Context, budget *models.Budget) error {
	if err := budget.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO budgets (id, workspace_id, scope_type, scope_id, monthly_limit_usd, created_at, updated_at)
		VALUES (:id, :workspace_id, :scope_type, :scope_id, :monthly_limit_usd, :created_at, :updated_at)
	`
	if _, err := r.db.conn.NamedExecContext(ctx, query, budget); err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a budget
func (r *BudgetRepository) Update(ctx context.Context, budget *models.Budget) error {
	if err := budget.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE budgets
		SET scope_type = :scope_type, scope_id = :scope_id,
		    monthly_limit_usd = :monthly_limit_usd, updated_at = :updated_at
		WHERE id = :id AND workspace_id = :workspace_id
	`
	result, err := r.db.conn.NamedExecContext(ctx, query, budget)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrBudgetNotFound
	}
	return nil
}

// Delete removes a budget
func (r *BudgetRepository) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrBudgetNotFound
	}
	return nil
}
