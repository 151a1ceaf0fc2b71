package domain

// WaitlistSubmission is one signup attempt from the site's waitlist form.
type WaitlistSubmission struct {
	Email          string
	TurnstileToken string
	RemoteIP       string
	Consent        *ConsentPreferences
}

// Email is a single-recipient transactional message.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// ConsentPreferences mirrors the cookie banner choices stored by the site.
type ConsentPreferences struct {
	Necessary   bool `json:"necessary"`
	Analytics   bool `json:"analytics"`
	Marketing   bool `json:"marketing"`
	Preferences bool `json:"preferences"`
}

// Verification is an anti-bot provider's verdict on a challenge token.
type Verification struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
	Action      string   `json:"action"`
}
