package delivery_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/notifier/pkg/delivery"
	"github.com/schooldesk/notifier/pkg/notification"
	"github.com/schooldesk/notifier/pkg/queue"
)

type captureRepo struct {
	mu    sync.Mutex
	tasks []*queue.Task
}

func (r *captureRepo) CreateTask(ctx context.Context, task *queue.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *captureRepo) last(t *testing.T) *queue.Task {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.tasks)
	return r.tasks[len(r.tasks)-1]
}

func newDispatcher(t *testing.T, repo *captureRepo, now time.Time) *delivery.QueueDispatcher {
	t.Helper()

	enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(func() time.Time { return now }))
	require.NoError(t, err)

	d, err := delivery.NewQueueDispatcher(enq,
		delivery.WithDispatcherClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return d
}

func TestQueueDispatcher_ImmediateTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := &captureRepo{}
	d := newDispatcher(t, repo, now)

	n := &notification.Notification{
		ID:     uuid.New(),
		Type:   notification.TypeGeneral,
		Status: notification.StatusScheduled,
	}
	require.NoError(t, d.Dispatch(ctx, n))

	task := repo.last(t)
	assert.Equal(t, now, task.ScheduledAt, "due immediately")
	assert.Equal(t, queue.PriorityDefault, task.Priority)
	assert.Equal(t, 3, task.MaxRetries, "task retry budget mirrors the policy")

	var payload delivery.SendEmailTask
	require.NoError(t, json.Unmarshal(task.Payload, &payload))
	assert.Equal(t, n.ID, payload.NotificationID)
}

func TestQueueDispatcher_FutureDatedTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := &captureRepo{}
	d := newDispatcher(t, repo, now)

	sendAt := now.Add(48 * time.Hour)
	n := &notification.Notification{
		ID:          uuid.New(),
		Type:        notification.TypeGeneral,
		Status:      notification.StatusScheduled,
		ScheduledAt: &sendAt,
	}
	require.NoError(t, d.Dispatch(ctx, n))

	assert.Equal(t, sendAt, repo.last(t).ScheduledAt, "not claimable before the send instant")
}

func TestQueueDispatcher_UrgentPriority(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := &captureRepo{}
	d := newDispatcher(t, repo, now)

	n := &notification.Notification{
		ID:     uuid.New(),
		Type:   notification.TypeUrgentInfo,
		Status: notification.StatusScheduled,
	}
	require.NoError(t, d.Dispatch(ctx, n))

	assert.Equal(t, queue.PriorityHigh, repo.last(t).Priority)
}
