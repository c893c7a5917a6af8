package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"home-services/realtime-service/internal/models"
)

// TokenClaims is what a verified credential yields.
type TokenClaims struct {
	UserID string
	Role   string
}

type tokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Blacklist reports revoked tokens. *RedisClient satisfies it.
type Blacklist interface {
	Exists(ctx context.Context, key string) (bool, error)
}

type JWTUtil struct {
	secret    []byte
	blacklist Blacklist
}

func NewJWTUtil(secret string, blacklist Blacklist) *JWTUtil {
	return &JWTUtil{secret: []byte(secret), blacklist: blacklist}
}

// GenerateToken issues an HS256 token in the format the auth service uses.
func (j *JWTUtil) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// Verify checks signature, expiry and revocation.
func (j *JWTUtil) Verify(ctx context.Context, tokenString string) (*TokenClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("%w: missing token", models.ErrUnauthenticated)
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: token expired", models.ErrUnauthenticated)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: malformed token", models.ErrUnauthenticated)
	case err != nil:
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthenticated)
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: token has no expiry", models.ErrUnauthenticated)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no subject", models.ErrUnauthenticated)
	}
	if j.blacklist != nil {
		revoked, err := j.blacklist.Exists(ctx, "blacklist:"+tokenString)
		if err != nil {
			return nil, fmt.Errorf("%w: revocation check: %w", models.ErrDependency, err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", models.ErrUnauthenticated)
		}
	}

	return &TokenClaims{UserID: claims.UserID, Role: claims.Role}, nil
}
