package analytics

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"echoe-api/internal/domain"
)

// Mode is the tracking level a Session was initialised with.
type Mode int

const (
	ModeOff Mode = iota
	ModeAnonymous
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModeAnonymous:
		return "anonymous"
	case ModeFull:
		return "full"
	default:
		return "off"
	}
}

// Capturer is implemented by *Client.
type Capturer interface {
	Enabled() bool
	Capture(ctx context.Context, ev Event) error
}

// Session holds one visitor's analytics state.
//
// Lifecycle: a new Session is uninitialised and drops events. ApplyConsent
// initialises it in Full or Anonymous mode; calling it again with the same
// consent is a no-op, with different consent it resets and re-initialises.
// Revoke resets it. A reset rotates the distinct id.
type Session struct {
	client Capturer
	newID  func() string

	mu         sync.Mutex
	mode       Mode
	distinctID string
}

func NewSession(client Capturer) *Session {
	return &Session{client: client, newID: uuid.NewString}
}

// ApplyConsent initialises the session for prefs (nil means no consent
// recorded, i.e. anonymous). It reports whether the session was
// (re)initialised. A disabled client leaves the session uninitialised.
func (s *Session) ApplyConsent(prefs *domain.ConsentPreferences) bool {
	if s.client == nil || !s.client.Enabled() {
		return false
	}
	want := ModeAnonymous
	if prefs != nil && prefs.Analytics {
		want = ModeFull
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == want {
		return false
	}
	s.resetLocked()
	s.mode = want
	s.distinctID = s.newID()
	return true
}

// Revoke drops all state; later events are discarded until ApplyConsent.
func (s *Session) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.mode = ModeOff
	s.distinctID = ""
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Initialized() bool {
	return s.Mode() != ModeOff
}

// Track captures name with props. Uninitialised sessions drop the event.
func (s *Session) Track(ctx context.Context, name string, props map[string]any) error {
	s.mu.Lock()
	mode, id := s.mode, s.distinctID
	s.mu.Unlock()
	if mode == ModeOff {
		return nil
	}

	merged := make(map[string]any, len(props)+2)
	for k, v := range props {
		merged[k] = v
	}
	merged["$lib"] = "echoe-api"
	if mode == ModeAnonymous {
		merged["$process_person_profile"] = false
	}
	return s.client.Capture(ctx, Event{Name: name, DistinctID: id, Properties: merged})
}

// TrackSignup records a waitlist signup. The address is only attached when
// the visitor consented to analytics.
func (s *Session) TrackSignup(ctx context.Context, email string) error {
	hasConsent := s.Mode() == ModeFull
	props := map[string]any{"has_consent": hasConsent}
	if hasConsent {
		props["email"] = email
	}
	return s.Track(ctx, "signup_submitted", props)
}

// TrackSignup records one waitlist signup through a fresh Session built from
// the visitor's consent.
func (c *Client) TrackSignup(ctx context.Context, email string, consent *domain.ConsentPreferences) error {
	s := NewSession(c)
	defer s.Revoke()
	s.ApplyConsent(consent)
	return s.TrackSignup(ctx, email)
}
