package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrInvalidToken = errors.New("token validation failed")

// Identity is what auth-service returns for a valid token.
type Identity struct {
	UserID        string `json:"user_id"`
	TenantID      string `json:"tenant_id"`
	Role          string `json:"role"`
	ResetRequired bool   `json:"reset_required"`
}

func (i Identity) IsStaff() bool {
	return i.Role != "" && i.Role != RoleClient
}

type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(200 * time.Millisecond).
			SetHeader("Accept", "application/json"),
	}
}

// Validate asks auth-service whether token is valid and who it belongs to.
func (c *Client) Validate(ctx context.Context, token string) (*Identity, error) {
	var id Identity
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&id).
		Get("/auth/validate")
	if err != nil {
		return nil, fmt.Errorf("auth service unreachable: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || id.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &id, nil
}
