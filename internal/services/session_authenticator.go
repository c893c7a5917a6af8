package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"home-services/realtime-service/internal/models"
)

const (
	// TokenSubprotocolPrefix marks the Sec-WebSocket-Protocol entry that
	// carries the credential, e.g. "bearer.eyJhbGci...".
	TokenSubprotocolPrefix = "bearer."
	TokenQueryParam        = "token"
)

type SessionAuthenticator struct {
	verifier TokenVerifier
}

func NewSessionAuthenticator(verifier TokenVerifier) *SessionAuthenticator {
	return &SessionAuthenticator{verifier: verifier}
}

// ExtractToken looks for the credential in the subprotocol auth field, the
// Authorization header and the query string, in that order.
func ExtractToken(r *http.Request) string {
	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(header, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, TokenSubprotocolPrefix) {
				return strings.TrimPrefix(p, TokenSubprotocolPrefix)
			}
		}
	}

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return strings.TrimSpace(r.URL.Query().Get(TokenQueryParam))
}

// Authenticate verifies token and binds a fresh connection identity.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, fmt.Errorf("%w: missing token", models.ErrUnauthenticated)
	}

	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}

	role, ok := models.NormalizeRole(claims.Role)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: unknown role %q", models.ErrUnauthenticated, claims.Role)
	}

	return models.Identity{
		ConnectionID: uuid.NewString(),
		UserID:       claims.UserID,
		Role:         role,
	}, nil
}

func (a *SessionAuthenticator) AuthenticateRequest(ctx context.Context, r *http.Request) (models.Identity, error) {
	return a.Authenticate(ctx, ExtractToken(r))
}
