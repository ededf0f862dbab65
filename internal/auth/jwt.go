package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 15 * time.Minute

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the authenticated user and their workspace.
type Claims struct {
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a short-lived token binding a user to a workspace.
func GenerateJWT(userID, workspaceID uuid.UUID, secret []byte, ttl time.Duration) (string, int64, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	expiresAt := time.Now().Add(ttl)
	claims := Claims{
		WorkspaceID: workspaceID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expiresAt.Unix(), nil
}

// ValidateJWT verifies the token signature and expiry and returns the claims.
func ValidateJWT(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// WorkspaceUUID parses the workspace claim back into a UUID.
func (c *Claims) WorkspaceUUID() (uuid.UUID, error) {
	return uuid.Parse(c.WorkspaceID)
}

// UserUUID parses the subject claim back into a UUID.
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
