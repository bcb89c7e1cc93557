package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/schooldesk/notifier/pkg/notification"
	"github.com/schooldesk/notifier/pkg/queue"
)

// QueueDispatcher implements notification.Dispatcher on top of the task
// queue. Urgent notifications jump the line via queue priority;
// future-dated ones are enqueued with their send instant so no worker
// attempts them early.
type QueueDispatcher struct {
	enqueuer *queue.Enqueuer
	policy   RetryPolicy
	now      func() time.Time
}

// QueueDispatcherOption configures a QueueDispatcher.
type QueueDispatcherOption func(*QueueDispatcher)

// WithDispatcherClock overrides the time source, used by tests.
func WithDispatcherClock(now func() time.Time) QueueDispatcherOption {
	return func(d *QueueDispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithDispatcherPolicy overrides the default retry policy.
func WithDispatcherPolicy(policy RetryPolicy) QueueDispatcherOption {
	return func(d *QueueDispatcher) {
		if policy.MaxAttempts > 0 {
			d.policy = policy
		}
	}
}

// NewQueueDispatcher creates a dispatcher over the given enqueuer.
func NewQueueDispatcher(enqueuer *queue.Enqueuer, opts ...QueueDispatcherOption) (*QueueDispatcher, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("enqueuer cannot be nil")
	}

	d := &QueueDispatcher{
		enqueuer: enqueuer,
		policy:   DefaultRetryPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch enqueues one delivery task for the notification.
func (d *QueueDispatcher) Dispatch(ctx context.Context, n *notification.Notification) error {
	opts := []queue.EnqueueOption{
		queue.WithMaxRetries(d.policy.MaxAttempts),
	}
	if n.Type == notification.TypeUrgentInfo {
		opts = append(opts, queue.WithPriority(queue.PriorityHigh))
	}
	if n.ScheduledAt != nil && n.ScheduledAt.After(d.now()) {
		opts = append(opts, queue.WithScheduledAt(*n.ScheduledAt))
	}

	if err := d.enqueuer.Enqueue(ctx, SendEmailTask{NotificationID: n.ID}, opts...); err != nil {
		return fmt.Errorf("failed to enqueue delivery for notification %s: %w", n.ID, err)
	}
	return nil
}
