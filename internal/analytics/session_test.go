package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"echoe-api/internal/domain"
)

type recordingCapturer struct {
	enabled bool
	events  []Event
}

func (r *recordingCapturer) Enabled() bool { return r.enabled }

func (r *recordingCapturer) Capture(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func newTestSession(c Capturer) *Session {
	s := NewSession(c)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return s
}

var (
	consented = &domain.ConsentPreferences{Necessary: true, Analytics: true}
	declined  = &domain.ConsentPreferences{Necessary: true}
)

func TestSession_TrackBeforeInitIsDropped(t *testing.T) {
	rec := &recordingCapturer{enabled: true}
	s := newTestSession(rec)

	require.NoError(t, s.Track(context.Background(), "section_view", nil))
	require.Empty(t, rec.events)
	require.False(t, s.Initialized())
}

func TestSession_DisabledClientNeverInitialises(t *testing.T) {
	rec := &recordingCapturer{enabled: false}
	s := newTestSession(rec)

	require.False(t, s.ApplyConsent(consented))
	require.Equal(t, ModeOff, s.Mode())
	require.NoError(t, s.TrackSignup(context.Background(), "ada@example.com"))
	require.Empty(t, rec.events)
}

func TestSession_InitOncePerConsentState(t *testing.T) {
	s := newTestSession(&recordingCapturer{enabled: true})

	require.True(t, s.ApplyConsent(declined))
	require.Equal(t, ModeAnonymous, s.Mode())
	require.False(t, s.ApplyConsent(nil), "same consent state must not re-initialise")
	require.False(t, s.ApplyConsent(declined))

	require.True(t, s.ApplyConsent(consented))
	require.Equal(t, ModeFull, s.Mode())
	require.False(t, s.ApplyConsent(consented))
}

func TestSession_ConsentChangeRotatesDistinctID(t *testing.T) {
	rec := &recordingCapturer{enabled: true}
	s := newTestSession(rec)

	s.ApplyConsent(declined)
	require.NoError(t, s.TrackSignup(context.Background(), "ada@example.com"))
	s.ApplyConsent(consented)
	require.NoError(t, s.TrackSignup(context.Background(), "ada@example.com"))

	require.Len(t, rec.events, 2)
	require.Equal(t, "id-1", rec.events[0].DistinctID)
	require.Equal(t, "id-2", rec.events[1].DistinctID)
	require.Equal(t, false, rec.events[0].Properties["$process_person_profile"])
	require.NotContains(t, rec.events[1].Properties, "$process_person_profile")
}

func TestSession_RevokeResets(t *testing.T) {
	rec := &recordingCapturer{enabled: true}
	s := newTestSession(rec)

	s.ApplyConsent(consented)
	s.Revoke()
	require.False(t, s.Initialized())
	require.NoError(t, s.TrackSignup(context.Background(), "ada@example.com"))
	require.Empty(t, rec.events)

	require.True(t, s.ApplyConsent(consented))
}

func TestSession_TrackSignup_EmailOnlyWithConsent(t *testing.T) {
	rec := &recordingCapturer{enabled: true}

	anon := newTestSession(rec)
	anon.ApplyConsent(declined)
	require.NoError(t, anon.TrackSignup(context.Background(), "ada@example.com"))

	full := newTestSession(rec)
	full.ApplyConsent(consented)
	require.NoError(t, full.TrackSignup(context.Background(), "ada@example.com"))

	require.Len(t, rec.events, 2)
	require.Equal(t, "signup_submitted", rec.events[0].Name)
	require.NotContains(t, rec.events[0].Properties, "email")
	require.Equal(t, false, rec.events[0].Properties["has_consent"])
	require.Equal(t, "ada@example.com", rec.events[1].Properties["email"])
	require.Equal(t, true, rec.events[1].Properties["has_consent"])
}

func TestSession_TrackAddsLibAndKeepsProps(t *testing.T) {
	rec := &recordingCapturer{enabled: true}
	s := newTestSession(rec)
	s.ApplyConsent(consented)

	props := map[string]any{"source": "waitlist"}
	require.NoError(t, s.Track(context.Background(), "custom_event", props))
	require.Len(t, rec.events, 1)
	require.Equal(t, "echoe-api", rec.events[0].Properties["$lib"])
	require.Equal(t, "waitlist", rec.events[0].Properties["source"])
	require.NotContains(t, props, "$lib")
}
