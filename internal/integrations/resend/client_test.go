package resend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"echoe-api/internal/domain"
	"echoe-api/internal/secrets"
)

type fakeSecrets struct {
	vals map[string]string
}

func (f *fakeSecrets) Get(_ context.Context, name string) (string, error) {
	v, ok := f.vals[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", secrets.ErrNotFound, name)
	}
	return v, nil
}

func withKey() *fakeSecrets {
	return &fakeSecrets{vals: map[string]string{secrets.ResendAPIKey: "re_test"}}
}

func newTestClient(t *testing.T, srv *httptest.Server, s secrets.Getter) *Client {
	t.Helper()
	c, err := NewClient(s, WithBaseURL(srv.URL), WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c
}

func testEmail() domain.Email {
	return domain.Email{
		From:    "echoe <waitlist@echoe.co>",
		To:      []string{"ada@example.com"},
		Subject: "You're on the echoe waitlist",
		HTML:    "<p>hi</p>",
	}
}

func TestEmailsURL(t *testing.T) {
	require.Equal(t, "https://api.resend.com/emails", emailsURL(""))
	require.Equal(t, "http://localhost:9000/emails", emailsURL("http://localhost:9000/"))
}

func TestNewClient_NilSecrets(t *testing.T) {
	_, err := NewClient(nil)
	require.ErrorContains(t, err, "nil")
}

func TestSend_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/emails", r.URL.Path)
		require.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got domain.Email
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, []string{"ada@example.com"}, got.To)
		require.Equal(t, "You're on the echoe waitlist", got.Subject)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email-123"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv, withKey()).Send(context.Background(), testEmail())
	require.NoError(t, err)
	require.Equal(t, "email-123", id)
}

func TestSend_MissingKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, &fakeSecrets{}).Send(context.Background(), testEmail())
	require.ErrorIs(t, err, secrets.ErrNotFound)
	require.Zero(t, calls)
}

func TestSend_NoRecipients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	msg := testEmail()
	msg.To = nil
	_, err := newTestClient(t, srv, withKey()).Send(context.Background(), msg)
	require.ErrorContains(t, err, "recipient")
}

func TestSend_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"domain not verified"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, withKey()).Send(context.Background(), testEmail())
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnprocessableEntity, statusErr.HTTPStatusCode())
	require.Contains(t, statusErr.Body, "domain not verified")
}

func TestSend_AcceptedWithUnreadableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	id, err := newTestClient(t, srv, withKey()).Send(context.Background(), testEmail())
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestSend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"id":"late"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, withKey())
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Send(context.Background(), testEmail())
	require.ErrorContains(t, err, "request failed")
}
