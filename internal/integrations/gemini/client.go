// Package gemini generates chat replies with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"echoe-api/internal/secrets"
)

const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the part of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client wraps a lazily built genai client keyed by the resolved API key.
type Client struct {
	secrets    secrets.Getter
	model      string
	baseURL    string
	httpClient *http.Client
	newModels  func(ctx context.Context, apiKey string) (contentGenerator, error)

	mu     sync.Mutex
	key    string
	models contentGenerator
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

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

func NewClient(s secrets.Getter, opts ...Option) (*Client, error) {
	if s == nil {
		return nil, errors.New("gemini: secrets getter must not be nil")
	}
	c := &Client{
		secrets:    s,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.newModels = c.buildModels
	return c, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) buildModels(ctx context.Context, apiKey string) (contentGenerator, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client.Models, nil
}

// generator returns the cached models handle, rebuilding it if the key
// changed since the last call.
func (c *Client) generator(ctx context.Context) (contentGenerator, error) {
	apiKey, err := c.secrets.Get(ctx, secrets.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve api key: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.models != nil && c.key == apiKey {
		return c.models, nil
	}
	models, err := c.newModels(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	c.key = apiKey
	c.models = models
	return models, nil
}

// Generate sends message as user content under systemInstruction and returns
// the model's text, which may be empty.
func (c *Client) Generate(ctx context.Context, systemInstruction, message string) (string, error) {
	models, err := c.generator(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(systemInstruction) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	resp, err := models.GenerateContent(ctx, c.model, genai.Text(message), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	return resp.Text(), nil
}
