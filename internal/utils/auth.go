package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"home-services/realtime-service/internal/models"
)

// AuthClient verifies tokens against the auth service instead of locally.
type AuthClient struct {
	baseURL string
	client  *http.Client
}

type AuthResponse struct {
	Role          string `json:"role"`
	UserID        string `json:"user_id"`
	ResetRequired bool   `json:"reset_required"`
}

func NewAuthClient(baseURL string) *AuthClient {
	return &AuthClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify verifies a token against the auth service
func (c *AuthClient) Verify(ctx context.Context, token string) (*TokenClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", models.ErrUnauthenticated)
	}

	url := fmt.Sprintf("%s/api/auth/validate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDependency, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: auth service: %v", models.ErrDependency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: auth service returned status: %d", models.ErrDependency, resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return nil, fmt.Errorf("%w: auth response: %v", models.ErrDependency, err)
	}
	if authResp.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthenticated)
	}

	return &TokenClaims{UserID: authResp.UserID, Role: authResp.Role}, nil
}
