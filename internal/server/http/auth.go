package http

import (
	"context"
	"strings"

	apperrors "hyperfocus/internal/errors"
)

// Identity is the resolved caller.
type Identity struct {
	UserID string
	Scopes []string
}

// HasScope reports whether the identity carries the given scope.
func (i Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authenticator resolves a bearer token to an identity. The production
// deployment implements this against the external auth service; the static
// implementation below serves development and tests.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// StaticTokenAuthenticator maps fixed bearer tokens to user ids and grants
// the full task scope set.
type StaticTokenAuthenticator struct {
	tokens map[string]string
}

// NewStaticTokenAuthenticator builds an authenticator over a token→user map.
func NewStaticTokenAuthenticator(tokens map[string]string) *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{tokens: tokens}
}

func (a *StaticTokenAuthenticator) Authenticate(_ context.Context, token string) (Identity, error) {
	userID, ok := a.tokens[token]
	if !ok || userID == "" {
		return Identity{}, apperrors.NewUnauthorized("invalid or expired token")
	}
	return Identity{
		UserID: userID,
		Scopes: []string{"tasks:read", "tasks:write"},
	}, nil
}

// extractBearerToken pulls the token out of an Authorization header.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
