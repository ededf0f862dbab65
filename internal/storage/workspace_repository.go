package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"promptdeck/internal/models"
)

// WorkspaceRepository handles workspace database operations with caching.
// The guard only reads the billing projection (plan + subscription status);
// the checkout/webhook collaborators own the writes.
type WorkspaceRepository struct {
	db    *DB
	cache *LRUCache
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{
		db:    db,
		cache: db.GetWorkspaceCache(),
	}
}

// GetByID retrieves a workspace by id (with caching)
func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	if cached, found := r.cache.Get(id.String()); found {
		return cached.(*models.Workspace), nil
	}

	var ws models.Workspace
	query := `
		SELECT id, owner_id, name, plan, subscription_status,
		       stripe_customer_id, stripe_subscription_id,
		       created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`
	err := r.db.conn.GetContext(ctx, &ws, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	r.cache.Set(id.String(), &ws)
	return &ws, nil
}

// GetByOwner retrieves the workspace owned by the given user
func (r *WorkspaceRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Workspace, error) {
	var ws models.Workspace
	query := `
		SELECT id, owner_id, name, plan, subscription_status,
		       stripe_customer_id, stripe_subscription_id,
		       created_at, updated_at
		FROM workspaces
		WHERE owner_id = $1
	`
	err := r.db.conn.GetContext(ctx, &ws, query, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to get workspace by owner: %w", err)
	}
	return &ws, nil
}

// UpdateBilling writes the plan and subscription status delivered by a
// checkout or webhook event, and drops the cached projection so the guard
// sees the change on its next evaluation.
func (r *WorkspaceRepository) UpdateBilling(ctx context.Context, id uuid.UUID, plan models.Plan, status models.SubscriptionStatus) error {
	query := `
		UPDATE workspaces
		SET plan = $2, subscription_status = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.conn.ExecContext(ctx, query, id, plan, status)
	if err != nil {
		return fmt.Errorf("failed to update workspace billing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrWorkspaceNotFound
	}

	r.cache.Delete(id.String())
	return nil
}
