package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/schooldesk/notifier/pkg/logger"
)

// Recorder appends events to a notification's log and serves aggregate stats.
type Recorder struct {
	storage Storage
	log     *slog.Logger
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger for the Recorder.
func WithLogger(log *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder creates an event recorder over the given storage.
func NewRecorder(storage Storage, opts ...RecorderOption) (*Recorder, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	r := &Recorder{
		storage: storage,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RecordOption attaches optional data to a recorded event.
type RecordOption func(*Event)

// WithDetails attaches a free-form details payload.
func WithDetails(details map[string]any) RecordOption {
	return func(e *Event) {
		if len(details) > 0 {
			e.Details = details
		}
	}
}

// WithClientInfo attaches the requester IP and user agent, used for opened
// and clicked events.
func WithClientInfo(ip, userAgent string) RecordOption {
	return func(e *Event) {
		e.IPAddress = ip
		e.UserAgent = userAgent
	}
}

// WithOccurredAt overrides the occurrence timestamp, used when ingesting
// provider callbacks that carry their own timing.
func WithOccurredAt(at time.Time) RecordOption {
	return func(e *Event) {
		if !at.IsZero() {
			e.OccurredAt = at
		}
	}
}

// Record appends one event to the notification's log.
func (r *Recorder) Record(ctx context.Context, notificationID uuid.UUID, kind Kind, opts ...RecordOption) (*Event, error) {
	if notificationID == uuid.Nil {
		return nil, ErrNotificationIDRequired
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	event := Event{
		ID:             uuid.New(),
		NotificationID: notificationID,
		Kind:           kind,
		OccurredAt:     r.now(),
	}
	for _, opt := range opts {
		opt(&event)
	}

	if err := r.storage.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append %s event: %w", kind, err)
	}

	r.log.DebugContext(ctx, "notification event recorded",
		logger.NotificationID(notificationID),
		logger.EventKind(kind),
	)
	return &event, nil
}

// List returns all events of a notification, oldest first.
func (r *Recorder) List(ctx context.Context, notificationID uuid.UUID) ([]Event, error) {
	return r.storage.ListByNotification(ctx, notificationID)
}

// Stats aggregates the event log of a notification.
func (r *Recorder) Stats(ctx context.Context, notificationID uuid.UUID) (Stats, error) {
	return r.storage.Stats(ctx, notificationID)
}
