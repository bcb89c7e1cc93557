package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows List results. Nil/empty fields are ignored.
type Filter struct {
	Status         *Status
	Type           *Type
	RecipientEmail string
	Limit          int // 0 = no limit
	Offset         int
}

// Storage handles notification persistence.
//
// The notification record is the single source of truth for in-flight state,
// so every state transition is an atomic verify-status-then-update operation:
// the methods below fail with a conflict error instead of overwriting a
// record whose status changed concurrently. Implementations must serialize
// mutations per notification id.
type Storage interface {
	// Create stores a new notification.
	Create(ctx context.Context, n *Notification) error

	// GetByID retrieves a notification by id, or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)

	// List returns notifications matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]Notification, error)

	// UpdateDraft replaces the editable fields of a draft. Fails with
	// ErrNotDraft once the notification left the draft state.
	UpdateDraft(ctx context.Context, n *Notification) error

	// PromoteToScheduled moves draft → scheduled.
	PromoteToScheduled(ctx context.Context, id uuid.UUID) error

	// ResetForRetry moves failed → scheduled and clears the error message.
	ResetForRetry(ctx context.Context, id uuid.UUID) error

	// MarkSent moves scheduled → sent and records the send instant.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	// MarkFailed moves scheduled → failed and records the final error.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// RecordFailure increments the retry counter and stores the attempt
	// error while the notification stays scheduled. Returns the new retry
	// count.
	RecordFailure(ctx context.Context, id uuid.UUID, errorMessage string) (int, error)

	// Delete removes a notification if its status is one of allowed;
	// otherwise it fails with ErrNotDeletable.
	Delete(ctx context.Context, id uuid.UUID, allowed ...Status) error
}
