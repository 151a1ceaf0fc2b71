// Package secrets resolves provider credentials from the environment, falling
// back to SSM Parameter Store when a parameter prefix is configured.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"echoe-api/internal/integrations/paramstore"
)

// ErrNotFound reports that a secret is configured nowhere.
var ErrNotFound = errors.New("secrets: not found")

// Names of the secrets the API consumes.
const (
	ResendAPIKey       = "RESEND_API_KEY"
	GeminiAPIKey       = "GEMINI_API_KEY"
	TurnstileSecretKey = "TURNSTILE_SECRET_KEY"
)

// Getter is implemented by Resolver and consumed by the integrations.
type Getter interface {
	Get(ctx context.Context, name string) (string, error)
}

// ParamGetter is the subset of paramstore.Client used for the SSM fallback.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the JSON shape some SSM parameters use for API tokens.
type tokenPayload struct {
	Token string `json:"token"`
}

// Resolver looks a secret up in the environment first and in SSM second.
// Only successful SSM lookups are cached, so a parameter created after a
// miss is picked up on the next request.
type Resolver struct {
	getenv func(string) string
	params ParamGetter
	prefix string

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver builds a Resolver. params may be nil, in which case only the
// environment is consulted.
func NewResolver(getenv func(string) string, params ParamGetter, prefix string) (*Resolver, error) {
	if getenv == nil {
		return nil, errors.New("secrets: getenv must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if params != nil && prefix == "" {
		return nil, errors.New("secrets: parameter prefix must not be empty when SSM is enabled")
	}
	return &Resolver{
		getenv: getenv,
		params: params,
		prefix: prefix,
		cache:  make(map[string]string),
	}, nil
}

// Get returns the value of the named secret or an error wrapping ErrNotFound.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: name is required")
	}
	if v := strings.TrimSpace(r.getenv(name)); v != "" {
		return v, nil
	}
	if r.params == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	r.mu.RLock()
	v, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}

	raw, err := r.params.GetParameter(ctx, r.ParameterName(name))
	if err != nil {
		if errors.Is(err, paramstore.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("secrets: load %s: %w", name, err)
	}
	v, err = unwrapToken(raw)
	if err != nil {
		return "", fmt.Errorf("secrets: load %s: %w", name, err)
	}
	if v == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNotFound, name)
	}

	r.mu.Lock()
	r.cache[name] = v
	r.mu.Unlock()
	return v, nil
}

// ParameterName maps RESEND_API_KEY to {prefix}/resend-api-key.
func (r *Resolver) ParameterName(name string) string {
	return r.prefix + "/" + strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// unwrapToken accepts either a raw secret or {"token":"..."}.
func unwrapToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("unmarshal token payload: %w", err)
	}
	return strings.TrimSpace(tp.Token), nil
}
