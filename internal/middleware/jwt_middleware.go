package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"promptdeck/internal/auth"
	"promptdeck/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	ClaimsKey      ContextKey = "claims"
	UserIDKey      ContextKey = "userID"
	WorkspaceIDKey ContextKey = "workspaceID"
)

// JWTMiddleware validates session tokens and embeds the caller's workspace
// into the request context. Every workspace-scoped handler sits behind it.
func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			claims, err := auth.ValidateJWT(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			userID, err := claims.UserUUID()
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token subject")
				return
			}
			workspaceID, err := claims.WorkspaceUUID()
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid workspace claim")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, WorkspaceIDKey, workspaceID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the validated claims from the request context
func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

// GetUserID retrieves the authenticated user ID from the request context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

// GetWorkspaceID retrieves the caller's workspace ID from the request context
func GetWorkspaceID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(WorkspaceIDKey).(uuid.UUID)
	return id, ok
}
