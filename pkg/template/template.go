package template

import (
	"time"

	"github.com/google/uuid"
)

// Template holds the subject and body text for one notification type.
// Subject and Body may contain {{name}} placeholder tokens which are
// resolved against a variable mapping at render time.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Variables []string  `json:"variables,omitempty"` // expected variable names, informational
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the minimal shape required before a template can be stored.
func (t Template) Validate() error {
	if t.Name == "" {
		return ErrNameRequired
	}
	if t.Type == "" {
		return ErrTypeRequired
	}
	if t.Subject == "" {
		return ErrSubjectRequired
	}
	if t.Body == "" {
		return ErrBodyRequired
	}
	return nil
}
