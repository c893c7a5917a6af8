package services

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-services/realtime-service/internal/models"
	"home-services/realtime-service/internal/utils"
)

const testSecret = "test-secret"

type revokedTokens map[string]bool

func (r revokedTokens) Exists(_ context.Context, key string) (bool, error) { return r[key], nil }

func TestExtractToken_Priority(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", ExtractToken(req))

	req.Header.Set("Sec-WebSocket-Protocol", "realtime.v1, bearer.from-subprotocol")
	assert.Equal(t, "from-subprotocol", ExtractToken(req))

	empty := httptest.NewRequest("GET", "/ws", nil)
	empty.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, ExtractToken(empty))
}

func TestAuthenticate(t *testing.T) {
	revoked := revokedTokens{}
	jwtUtil := utils.NewJWTUtil(testSecret, revoked)
	auth := NewSessionAuthenticator(jwtUtil)
	ctx := context.Background()

	token, err := jwtUtil.GenerateToken("client-1", "client", time.Hour)
	require.NoError(t, err)

	id, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", id.UserID)
	assert.Equal(t, models.RoleUser, id.Role)
	assert.NotEmpty(t, id.ConnectionID)

	again, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.NotEqual(t, id.ConnectionID, again.ConnectionID, "every connection gets its own id")

	t.Run("missing", func(t *testing.T) {
		_, err := auth.Authenticate(ctx, "")
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := jwtUtil.GenerateToken("client-1", "client", -time.Minute)
		require.NoError(t, err)
		_, err = auth.Authenticate(ctx, expired)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged, err := utils.NewJWTUtil("other", nil).GenerateToken("client-1", "client", time.Hour)
		require.NoError(t, err)
		_, err = auth.Authenticate(ctx, forged)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("unknown role", func(t *testing.T) {
		odd, err := jwtUtil.GenerateToken("client-1", "wizard", time.Hour)
		require.NoError(t, err)
		_, err = auth.Authenticate(ctx, odd)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("revoked", func(t *testing.T) {
		revoked["blacklist:"+token] = true
		defer delete(revoked, "blacklist:"+token)
		_, err := auth.Authenticate(ctx, token)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})
}

func TestAuthenticateRequest(t *testing.T) {
	jwtUtil := utils.NewJWTUtil(testSecret, nil)
	auth := NewSessionAuthenticator(jwtUtil)

	token, err := jwtUtil.GenerateToken("agent-1", "support", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Sec-WebSocket-Protocol", "realtime.v1, bearer."+token)
	id, err := auth.AuthenticateRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, id.Role)
}
