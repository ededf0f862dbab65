package httpapi

import (
	"context"

	"github.com/google/uuid"

	"promptdeck/internal/middleware"
)

// workspaceFromContext pulls the authenticated workspace out of the request
// context placed there by the JWT middleware.
func workspaceFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetWorkspaceID(ctx)
}
