package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/schooldesk/notifier/pkg/eventlog"
	"github.com/schooldesk/notifier/pkg/logger"
	"github.com/schooldesk/notifier/pkg/mailer"
	"github.com/schooldesk/notifier/pkg/notification"
	"github.com/schooldesk/notifier/pkg/queue"
)

// Handler performs one delivery attempt per task execution.
//
// The notification record, not the task, decides what happens: the handler
// re-reads it on every attempt, aborts on any status other than scheduled,
// and re-defers itself when the send instant has not arrived yet. Returning
// an error hands the attempt back to the queue, which reschedules it after
// the policy backoff; returning nil finishes the task, whether the
// notification ended up sent or failed.
type Handler struct {
	notifications notification.Storage
	events        *eventlog.Recorder
	sender        mailer.Sender
	rescheduler   notification.Dispatcher
	policy        RetryPolicy
	log           *slog.Logger
	now           func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the Handler.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithHandlerClock overrides the time source, used by tests.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithHandlerPolicy overrides the default retry policy.
func WithHandlerPolicy(policy RetryPolicy) HandlerOption {
	return func(h *Handler) {
		if policy.MaxAttempts > 0 {
			h.policy = policy
		}
	}
}

// NewHandler creates a delivery handler.
func NewHandler(
	notifications notification.Storage,
	events *eventlog.Recorder,
	sender mailer.Sender,
	rescheduler notification.Dispatcher,
	opts ...HandlerOption,
) (*Handler, error) {
	if notifications == nil || events == nil {
		return nil, notification.ErrStorageNil
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if rescheduler == nil {
		return nil, fmt.Errorf("rescheduler cannot be nil")
	}

	h := &Handler{
		notifications: notifications,
		events:        events,
		sender:        sender,
		rescheduler:   rescheduler,
		policy:        DefaultRetryPolicy(),
		log:           slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// TaskHandler wraps the delivery attempt as a queue handler.
func (h *Handler) TaskHandler() queue.Handler {
	return queue.NewTaskHandler(h.Handle)
}

// Handle performs one delivery attempt.
func (h *Handler) Handle(ctx context.Context, task SendEmailTask) error {
	n, err := h.notifications.GetByID(ctx, task.NotificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			h.log.WarnContext(ctx, "notification vanished before delivery",
				logger.NotificationID(task.NotificationID))
			return nil
		}
		return fmt.Errorf("failed to load notification %s: %w", task.NotificationID, err)
	}

	// A status mismatch means a concurrent transition won; abort without
	// side effects.
	if n.Status != notification.StatusScheduled {
		h.log.DebugContext(ctx, "skipping delivery, notification no longer scheduled",
			logger.NotificationID(n.ID),
			logger.Status(string(n.Status)),
		)
		return nil
	}

	// Woke up early: re-defer to the remaining interval instead of sending.
	now := h.now()
	if n.ScheduledAt != nil && n.ScheduledAt.After(now) {
		h.log.DebugContext(ctx, "delivery not due yet, re-deferring",
			logger.NotificationID(n.ID),
			slog.Time("scheduled_at", *n.ScheduledAt),
		)
		return h.rescheduler.Dispatch(ctx, n)
	}

	sendErr := h.sender.Send(ctx, mailer.Message{
		To:      n.RecipientEmail,
		ToName:  n.RecipientName,
		Subject: n.Subject,
		Body:    n.Body,
		Tag:     string(n.Type),
		Metadata: map[string]string{
			"notification_id": n.ID.String(),
		},
	})
	if sendErr == nil {
		return h.finalizeSent(ctx, n)
	}
	return h.handleSendFailure(ctx, n, sendErr)
}

// finalizeSent transitions the notification to sent and records the event.
// Status mutation comes strictly after the transport call returned.
func (h *Handler) finalizeSent(ctx context.Context, n *notification.Notification) error {
	sentAt := h.now()
	if err := h.notifications.MarkSent(ctx, n.ID, sentAt); err != nil {
		if errors.Is(err, notification.ErrNotScheduled) || errors.Is(err, notification.ErrNotFound) {
			h.log.WarnContext(ctx, "notification transitioned concurrently after send",
				logger.NotificationID(n.ID))
			return nil
		}
		return fmt.Errorf("failed to mark notification %s sent: %w", n.ID, err)
	}

	if _, err := h.events.Record(ctx, n.ID, eventlog.KindSent, eventlog.WithDetails(map[string]any{
		"sent_at": sentAt.Format(time.RFC3339),
	})); err != nil {
		h.log.ErrorContext(ctx, "failed to record sent event",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}

	h.log.InfoContext(ctx, "notification delivered",
		logger.NotificationID(n.ID),
		logger.Recipient(n.RecipientEmail),
	)
	return nil
}

// handleSendFailure books the failed attempt. While attempts remain and the
// failure is not permanent, the error propagates so the queue reschedules
// the task after the backoff; the notification stays scheduled. Otherwise
// the notification is finalized failed and the task ends here.
func (h *Handler) handleSendFailure(ctx context.Context, n *notification.Notification, sendErr error) error {
	attempts, err := h.notifications.RecordFailure(ctx, n.ID, sendErr.Error())
	if err != nil {
		if errors.Is(err, notification.ErrNotScheduled) || errors.Is(err, notification.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to record delivery failure for %s: %w", n.ID, err)
	}

	h.log.WarnContext(ctx, "delivery attempt failed",
		logger.NotificationID(n.ID),
		logger.RetryCount(attempts),
		logger.Error(sendErr),
	)

	if attempts < h.policy.MaxAttempts && !mailer.IsPermanent(sendErr) {
		return sendErr
	}
	return h.finalizeFailed(ctx, n, sendErr, attempts, nil)
}

// HandleTerminal finalizes a notification whose delivery task was
// dead-lettered for a reason the attempt path never got to handle, such as
// a persistent storage failure. Without it a task could die with its
// notification stuck in scheduled forever.
func (h *Handler) HandleTerminal(ctx context.Context, task *queue.Task, cause error) error {
	var payload SendEmailTask
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal dead-lettered payload: %w", err)
	}

	n, err := h.notifications.GetByID(ctx, payload.NotificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return nil
		}
		return err
	}
	if n.Status != notification.StatusScheduled {
		return nil
	}

	return h.finalizeFailed(ctx, n, cause, n.RetryCount, map[string]any{"final_failure": true})
}

func (h *Handler) finalizeFailed(ctx context.Context, n *notification.Notification, cause error, attempts int, extra map[string]any) error {
	if err := h.notifications.MarkFailed(ctx, n.ID, cause.Error()); err != nil {
		if errors.Is(err, notification.ErrNotScheduled) || errors.Is(err, notification.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to mark notification %s failed: %w", n.ID, err)
	}

	details := map[string]any{
		"attempts": attempts,
		"error":    cause.Error(),
	}
	for k, v := range extra {
		details[k] = v
	}
	if _, err := h.events.Record(ctx, n.ID, eventlog.KindFailed, eventlog.WithDetails(details)); err != nil {
		h.log.ErrorContext(ctx, "failed to record failed event",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}

	h.log.ErrorContext(ctx, "notification delivery exhausted",
		logger.NotificationID(n.ID),
		logger.RetryCount(attempts),
		logger.Error(cause),
	)
	return nil
}
