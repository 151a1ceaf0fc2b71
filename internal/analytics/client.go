// Package analytics records product events in PostHog. Whether anything is
// sent, and how identifiable it is, is decided by a Session from the
// visitor's cookie consent.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultHost = "https://a.echoe.co"

// Event is a single capture call.
type Event struct {
	Name       string
	DistinctID string
	Properties map[string]any
}

type captureRequest struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// Client posts events to the PostHog capture endpoint. A Client without an
// API key is disabled and drops every event.
type Client struct {
	apiKey     string
	host       string
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiKey, host string, logger *zap.Logger, opts ...Option) *Client {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = DefaultHost
	}
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		host:       host,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" && logger != nil {
		logger.Warn("analytics disabled: POSTHOG_KEY is not set")
	}
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) captureURL() string {
	return c.host + "/i/v0/e/"
}

// Capture sends ev. It is a no-op on a disabled client.
func (c *Client) Capture(ctx context.Context, ev Event) error {
	if !c.Enabled() {
		return nil
	}
	if ev.Name == "" || ev.DistinctID == "" {
		return fmt.Errorf("analytics: event name and distinct id are required")
	}
	body, err := json.Marshal(captureRequest{
		APIKey:     c.apiKey,
		Event:      ev.Name,
		DistinctID: ev.DistinctID,
		Properties: ev.Properties,
		Timestamp:  c.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("analytics: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.captureURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("analytics: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analytics: capture %s: %w", ev.Name, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("analytics: capture %s: unexpected status %d: %s", ev.Name, res.StatusCode, buf)
	}
	return nil
}
