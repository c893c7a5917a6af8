package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-services/realtime-service/internal/models"
)

type blacklist map[string]bool

func (b blacklist) Exists(_ context.Context, key string) (bool, error) { return b[key], nil }

type downBlacklist struct{}

func (downBlacklist) Exists(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestJWTUtil_Verify(t *testing.T) {
	j := NewJWTUtil("secret", blacklist{})
	ctx := context.Background()

	token, err := j.GenerateToken("provider-1", "cleaner", time.Hour)
	require.NoError(t, err)

	claims, err := j.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "provider-1", claims.UserID)
	assert.Equal(t, "cleaner", claims.Role)

	_, err = j.Verify(ctx, "not.a.token")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = j.Verify(ctx, "  ")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestJWTUtil_RejectsRevokedAndUnboundedTokens(t *testing.T) {
	ctx := context.Background()
	token, err := NewJWTUtil("secret", nil).GenerateToken("client-1", "client", time.Hour)
	require.NoError(t, err)

	revoked := NewJWTUtil("secret", blacklist{"blacklist:" + token: true})
	_, err = revoked.Verify(ctx, token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{UserID: "client-1", Role: "client"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewJWTUtil("secret", nil).Verify(ctx, noExpiry)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{
		UserID:           "client-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewJWTUtil("secret", nil).Verify(ctx, none)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestJWTUtil_BlacklistUnavailable(t *testing.T) {
	ctx := context.Background()
	j := NewJWTUtil("secret", downBlacklist{})
	token, err := j.GenerateToken("client-1", "client", time.Hour)
	require.NoError(t, err)

	claims, err := j.Verify(ctx, token)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, models.ErrDependency)
	assert.NotErrorIs(t, err, models.ErrUnauthenticated)
}
