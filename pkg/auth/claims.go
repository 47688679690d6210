// Package auth authenticates SmartPark callers.
// Users present JWTs validated against JWKS endpoints; hardware presents
// HMAC-signed reports under an API key.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
	// APIKeyKey is the context key for the API key a hardware report was signed with.
	APIKeyKey contextKey = "api_key"
)

var (
	// ErrUnauthenticated is returned when a request carries no validated claims.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidSubject is returned when the token subject is not a user UUID.
	ErrInvalidSubject = errors.New("token subject must be a user UUID")
)

// Claims represents the JWT claims issued by the identity provider.
// Roles carries system-wide roles only; tenant roles live in client memberships.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// UserID parses the subject as the caller's user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidSubject, c.Subject)
	}
	return id, nil
}

// SystemRoles returns the recognized roles carried by the token.
// Membership-only roles are ignored here so a token cannot grant tenant scope.
func (c *Claims) SystemRoles() []models.Role {
	roles := make([]models.Role, 0, len(c.Roles))
	for _, r := range c.Roles {
		switch models.Role(r) {
		case models.RoleAdmin, models.RoleAppUser:
			roles = append(roles, models.Role(r))
		}
	}
	return roles
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// GetAPIKey retrieves the verified ingestion API key from the request context.
func GetAPIKey(ctx context.Context) (*models.APIKey, bool) {
	key, ok := ctx.Value(APIKeyKey).(*models.APIKey)
	return key, ok && key != nil
}
