package eventlog

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what happened to a notification.
type Kind string

const (
	KindSent    Kind = "sent"
	KindOpened  Kind = "opened"
	KindClicked Kind = "clicked"
	KindFailed  Kind = "failed"
	KindBounced Kind = "bounced"
)

// Valid checks if the kind is one of the recognized event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSent, KindOpened, KindClicked, KindFailed, KindBounced:
		return true
	}
	return false
}

// Event is one immutable entry in a notification's engagement log.
// Events are append-only: once recorded they are never mutated, and they are
// removed only when the owning notification is deleted.
type Event struct {
	ID             uuid.UUID      `json:"id"`
	NotificationID uuid.UUID      `json:"notification_id"`
	Kind           Kind           `json:"event"`
	Details        map[string]any `json:"details,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Stats aggregates a notification's event log.
type Stats struct {
	Sent          int        `json:"sent"`
	Opened        int        `json:"opened"`
	Clicked       int        `json:"clicked"`
	Failed        int        `json:"failed"`
	Bounced       int        `json:"bounced"`
	LastOpenedAt  *time.Time `json:"last_opened_at,omitempty"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
}
