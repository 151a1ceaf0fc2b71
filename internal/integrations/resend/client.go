package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"echoe-api/internal/domain"
	"echoe-api/internal/secrets"
)

const defaultBaseURL = "https://api.resend.com"

// sendResponse is the minimal response shape of POST /emails.
type sendResponse struct {
	ID string `json:"id"`
}

// HTTPStatusError captures non-2xx upstream responses. Body is for logs only.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("resend: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client sends transactional email through the Resend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	secrets    secrets.Getter
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client that resolves RESEND_API_KEY through s on every
// send. A missing key surfaces as an error wrapping secrets.ErrNotFound.
func NewClient(s secrets.Getter, opts ...Option) (*Client, error) {
	if s == nil {
		return nil, errors.New("resend: secrets getter must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		secrets:    s,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIKey resolves the Resend key without sending anything.
func (c *Client) APIKey(ctx context.Context) (string, error) {
	key, err := c.secrets.Get(ctx, secrets.ResendAPIKey)
	if err != nil {
		return "", fmt.Errorf("resend: resolve api key: %w", err)
	}
	return key, nil
}

func emailsURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/emails"
}

// Send delivers msg and returns the provider's message id. Any 2xx reply
// counts as accepted; the id is empty when the body cannot be decoded.
func (c *Client) Send(ctx context.Context, msg domain.Email) (string, error) {
	if len(msg.To) == 0 {
		return "", errors.New("resend: at least one recipient is required")
	}
	apiKey, err := c.APIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("resend: marshal request: %w", err)
	}

	url := emailsURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("resend: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("resend: request failed: %w", err)
	}

	var payload sendResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil
	}
	return payload.ID, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
