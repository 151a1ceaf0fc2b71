// Package turnstile verifies Cloudflare Turnstile challenge tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"echoe-api/internal/domain"
	"echoe-api/internal/secrets"
)

const defaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// HTTPStatusError captures non-2xx siteverify responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("turnstile: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	verifyURL  string
	httpClient *http.Client
	secrets    secrets.Getter
}

type Option func(*Client)

func WithVerifyURL(u string) Option {
	return func(c *Client) {
		c.verifyURL = strings.TrimSpace(u)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(s secrets.Getter, opts ...Option) (*Client, error) {
	if s == nil {
		return nil, errors.New("turnstile: secrets getter must not be nil")
	}
	c := &Client{
		verifyURL:  defaultVerifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		secrets:    s,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Verify checks token against siteverify. When no secret is configured it
// returns an error wrapping secrets.ErrNotFound without calling out. An empty
// token is rejected locally.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (domain.Verification, error) {
	secret, err := c.secrets.Get(ctx, secrets.TurnstileSecretKey)
	if err != nil {
		return domain.Verification{}, fmt.Errorf("turnstile: resolve secret: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Verification{Success: false, ErrorCodes: []string{"missing-input-response"}}, nil
	}

	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Verification{}, fmt.Errorf("turnstile: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return domain.Verification{}, fmt.Errorf("turnstile: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return domain.Verification{}, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}

	var out domain.Verification
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&out); err != nil {
		return domain.Verification{}, fmt.Errorf("turnstile: decode response: %w", err)
	}
	return out, nil
}
