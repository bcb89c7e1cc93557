package delivery

import "github.com/google/uuid"

// SendEmailTask is the queue payload for one delivery. It carries only the
// notification id; the record itself is the single source of truth, re-read
// on every attempt.
type SendEmailTask struct {
	NotificationID uuid.UUID `json:"notification_id"`
}
