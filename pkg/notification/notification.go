package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of message sent to a recipient.
type Type string

const (
	TypePaymentReminder Type = "payment_reminder"
	TypeUrgentInfo      Type = "urgent_info"
	TypeGeneral         Type = "general"
)

// Valid checks if the type is one of the recognized notification types.
func (t Type) Valid() bool {
	switch t {
	case TypePaymentReminder, TypeUrgentInfo, TypeGeneral:
		return true
	}
	return false
}

// Status is a notification's lifecycle state.
//
// The only permitted transitions are draft→scheduled, scheduled→sent,
// scheduled→failed and failed→scheduled (explicit retry). Sent is terminal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
)

// Valid checks if the status is one of the recognized lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusSent, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status graph permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusScheduled
	case StatusScheduled:
		return next == StatusSent || next == StatusFailed
	case StatusFailed:
		return next == StatusScheduled
	}
	return false
}

// Notification is one outbound email message and its full lifecycle record.
//
// Invariants: SentAt is set iff Status is sent; ErrorMessage is set only while
// failed or while a retry is in flight; RetryCount only grows, one increment
// per failed delivery attempt. Subject, body, recipient and schedule are
// editable only while the notification is a draft.
type Notification struct {
	ID             uuid.UUID         `json:"id"`
	TemplateID     *uuid.UUID        `json:"template_id,omitempty"`
	Type           Type              `json:"type"`
	Status         Status            `json:"status"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientName  string            `json:"recipient_name"`
	Subject        string            `json:"subject"`
	Body           string            `json:"body"`
	Variables      map[string]string `json:"variables,omitempty"`
	ScheduledAt    *time.Time        `json:"scheduled_at,omitempty"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	RetryCount     int               `json:"retry_count"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// DueAt reports whether the notification is due for delivery at the given
// instant. A notification without a scheduled time is always due.
func (n *Notification) DueAt(now time.Time) bool {
	return n.ScheduledAt == nil || !n.ScheduledAt.After(now)
}
