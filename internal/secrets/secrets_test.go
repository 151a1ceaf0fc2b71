package secrets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"echoe-api/internal/integrations/paramstore"
)

type fakeParams struct {
	vals  map[string]string
	err   error
	calls int
}

func (f *fakeParams) GetParameter(_ context.Context, name string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.vals[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", paramstore.ErrNotFound, name)
	}
	return v, nil
}

func envOf(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestNewResolver_Validates(t *testing.T) {
	_, err := NewResolver(nil, nil, "")
	require.Error(t, err)

	_, err = NewResolver(envOf(nil), &fakeParams{}, " / ")
	require.Error(t, err)

	_, err = NewResolver(envOf(nil), nil, "")
	require.NoError(t, err)
}

func TestGet_EnvWins(t *testing.T) {
	params := &fakeParams{vals: map[string]string{"/echoe/resend-api-key": "re_ssm"}}
	r, err := NewResolver(envOf(map[string]string{ResendAPIKey: " re_env "}), params, "/echoe/")
	require.NoError(t, err)

	v, err := r.Get(context.Background(), ResendAPIKey)
	require.NoError(t, err)
	require.Equal(t, "re_env", v)
	require.Zero(t, params.calls)
}

func TestGet_FallsBackToSSMAndCaches(t *testing.T) {
	params := &fakeParams{vals: map[string]string{"/echoe/gemini-api-key": `{"token":"g-123"}`}}
	r, err := NewResolver(envOf(nil), params, "/echoe")
	require.NoError(t, err)

	v, err := r.Get(context.Background(), GeminiAPIKey)
	require.NoError(t, err)
	require.Equal(t, "g-123", v)

	_, _ = r.Get(context.Background(), GeminiAPIKey)
	require.Equal(t, 1, params.calls)
}

func TestGet_RawSSMValue(t *testing.T) {
	params := &fakeParams{vals: map[string]string{"/echoe/turnstile-secret-key": "0x4AAA"}}
	r, err := NewResolver(envOf(nil), params, "/echoe")
	require.NoError(t, err)

	v, err := r.Get(context.Background(), TurnstileSecretKey)
	require.NoError(t, err)
	require.Equal(t, "0x4AAA", v)
}

func TestGet_NotFound(t *testing.T) {
	r, err := NewResolver(envOf(nil), nil, "")
	require.NoError(t, err)
	_, err = r.Get(context.Background(), ResendAPIKey)
	require.ErrorIs(t, err, ErrNotFound)

	params := &fakeParams{vals: map[string]string{}}
	r, err = NewResolver(envOf(nil), params, "/echoe")
	require.NoError(t, err)
	_, err = r.Get(context.Background(), ResendAPIKey)
	require.ErrorIs(t, err, ErrNotFound)

	params.vals["/echoe/resend-api-key"] = `{"token":""}`
	_, err = r.Get(context.Background(), ResendAPIKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_MissIsRetried(t *testing.T) {
	params := &fakeParams{vals: map[string]string{}}
	r, err := NewResolver(envOf(nil), params, "/echoe")
	require.NoError(t, err)

	_, err = r.Get(context.Background(), ResendAPIKey)
	require.ErrorIs(t, err, ErrNotFound)

	params.vals["/echoe/resend-api-key"] = "re_late"
	v, err := r.Get(context.Background(), ResendAPIKey)
	require.NoError(t, err)
	require.Equal(t, "re_late", v)
}

func TestGet_SSMErrorIsNotNotFound(t *testing.T) {
	r, err := NewResolver(envOf(nil), &fakeParams{err: errors.New("throttled")}, "/echoe")
	require.NoError(t, err)

	_, err = r.Get(context.Background(), ResendAPIKey)
	require.ErrorContains(t, err, "throttled")
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestGet_MalformedJSON(t *testing.T) {
	params := &fakeParams{vals: map[string]string{"/echoe/resend-api-key": `{"broken`}}
	r, err := NewResolver(envOf(nil), params, "/echoe")
	require.NoError(t, err)

	_, err = r.Get(context.Background(), ResendAPIKey)
	require.ErrorContains(t, err, "unmarshal")
}

func TestParameterName(t *testing.T) {
	r, err := NewResolver(envOf(nil), &fakeParams{}, "/echoe/")
	require.NoError(t, err)
	require.Equal(t, "/echoe/turnstile-secret-key", r.ParameterName(TurnstileSecretKey))
}
