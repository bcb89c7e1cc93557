package mailer

import (
	"context"
	"fmt"
	"regexp"
)

// Sender delivers one email message. Implementations tag errors as permanent
// via ErrPermanent when retrying the same message cannot succeed.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Tag     string `json:"tag,omitempty"` // provider-side category, e.g. the notification type

	// Metadata travels with the message and comes back on provider
	// webhooks, e.g. the notification id used to attribute bounces.
	Metadata map[string]string `json:"metadata,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the minimal shape required before a message can be sent.
func (m Message) Validate() error {
	if !emailRegex.MatchString(m.To) {
		return fmt.Errorf("%w: recipient %q", ErrInvalidMessage, m.To)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	}
	if m.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// Recipient formats the To header with the display name when present.
func (m Message) Recipient() string {
	if m.ToName == "" {
		return m.To
	}
	return fmt.Sprintf("%s <%s>", m.ToName, m.To)
}
