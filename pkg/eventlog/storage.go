package eventlog

import (
	"context"

	"github.com/google/uuid"
)

// Storage handles event persistence. Events are write-once.
type Storage interface {
	// Append stores a new event.
	Append(ctx context.Context, event Event) error

	// ListByNotification returns all events for a notification ordered by
	// occurrence time, oldest first.
	ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Event, error)

	// Stats aggregates the event log of a notification.
	Stats(ctx context.Context, notificationID uuid.UUID) (Stats, error)

	// DeleteByNotification removes all events owned by a notification.
	// Used only when the owning notification is deleted.
	DeleteByNotification(ctx context.Context, notificationID uuid.UUID) error
}
