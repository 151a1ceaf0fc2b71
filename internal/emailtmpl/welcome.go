// Package emailtmpl renders the transactional emails sent by the API.
package emailtmpl

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

var (
	//go:embed templates/welcome.html
	welcomeHTMLSource string
	//go:embed templates/welcome.txt
	welcomeTextSource string

	welcomeHTML = pongo2.Must(pongo2.FromString(welcomeHTMLSource))
	welcomeText = pongo2.Must(pongo2.FromString(welcomeTextSource))
)

const WelcomeSubject = "You're on the echoe waitlist"

var welcomeFeatures = []string{
	"Unified inbox for all your channels",
	"AI-powered customer support",
	"Seamless inventory management",
	"Real-time order tracking",
}

// Rendered is a rendered message body pair.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Welcome renders the waitlist welcome email for recipient. The address is
// HTML-escaped in the HTML part.
func Welcome(recipient string) (Rendered, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return Rendered{}, errors.New("emailtmpl: recipient is required")
	}
	ctx := pongo2.Context{
		"brand":     "echoe",
		"email":     recipient,
		"features":  welcomeFeatures,
		"site_url":  "https://echoe.co",
		"site_host": "echoe.co",
	}
	html, err := welcomeHTML.Execute(ctx)
	if err != nil {
		return Rendered{}, fmt.Errorf("emailtmpl: render welcome html: %w", err)
	}
	text, err := welcomeText.Execute(ctx)
	if err != nil {
		return Rendered{}, fmt.Errorf("emailtmpl: render welcome text: %w", err)
	}
	return Rendered{Subject: WelcomeSubject, HTML: html, Text: text}, nil
}
