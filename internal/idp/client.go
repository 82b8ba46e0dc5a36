// Package idp is the HTTP client for the external identity provider's
// claim store. The provider verifies credentials and issues tokens; this
// client only writes role/company claims back so future tokens carry
// them.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cuehall.org/internal/authz"
)

const defaultTimeout = 5 * time.Second

// Client pushes claim updates to the identity provider.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a claim-store client.
func New(baseURL, serviceToken string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("idp: base url is required")
	}
	c := &Client{
		baseURL:      baseURL,
		serviceToken: strings.TrimSpace(serviceToken),
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ authz.ClaimsPusher = (*Client)(nil)

type claimsPayload struct {
	Role        *string `json:"role,omitempty"`
	CompanyID   *string `json:"company_id,omitempty"`
	Initialized bool    `json:"initialized"`
}

// PushClaims writes the new role/company into the provider's claim store.
// Transport failures and 5xx responses are reported as transient so the
// synchronizer can count them as retryable lag, never as a denial.
func (c *Client) PushClaims(ctx context.Context, principalID string, upd authz.ClaimsUpdate) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return fmt.Errorf("%w: principal_id is required", authz.ErrInvalidInput)
	}

	payload := claimsPayload{CompanyID: upd.CompanyID, Initialized: true}
	if upd.Role != nil {
		name := upd.Role.String()
		payload.Role = &name
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("idp: encode claims: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/claims", c.baseURL, url.PathEscape(principalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("idp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return authz.Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: principal %s unknown to identity provider", authz.ErrNotFound, principalID)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return authz.Transient(fmt.Errorf("idp: claim push returned %d", resp.StatusCode))
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("idp: claim push returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}
