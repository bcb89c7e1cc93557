package queue_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type testPayload struct {
	Value string `json:"value"`
}

func TestEnqueuer_Defaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := &captureRepo{}
	enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, enq.Enqueue(ctx, testPayload{Value: "hello"}))

	task := repo.last(t)
	assert.Equal(t, queue.DefaultQueueName, task.Queue)
	assert.Equal(t, queue.PriorityDefault, task.Priority)
	assert.Equal(t, queue.TaskStatusPending, task.Status)
	assert.Equal(t, 3, task.MaxRetries)
	assert.Equal(t, now, task.ScheduledAt, "eligible immediately")
	assert.Equal(t, queue.TaskNameFor(testPayload{}), task.TaskName)

	var decoded testPayload
	require.NoError(t, json.Unmarshal(task.Payload, &decoded))
	assert.Equal(t, "hello", decoded.Value)
}

func TestEnqueuer_Scheduling(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	repo := &captureRepo{}
	enq, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, enq.Enqueue(ctx, testPayload{}, queue.WithDelay(time.Minute)))
	assert.Equal(t, now.Add(time.Minute), repo.last(t).ScheduledAt)

	sendAt := now.Add(48 * time.Hour)
	require.NoError(t, enq.Enqueue(ctx, testPayload{}, queue.WithScheduledAt(sendAt)))
	assert.Equal(t, sendAt, repo.last(t).ScheduledAt)
}

func TestEnqueuer_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := queue.NewEnqueuer(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	enq, err := queue.NewEnqueuer(&captureRepo{})
	require.NoError(t, err)

	assert.ErrorIs(t, enq.Enqueue(ctx, nil), queue.ErrPayloadNil)
	assert.ErrorIs(t, enq.Enqueue(ctx, testPayload{}, queue.WithPriority(101)), queue.ErrInvalidPriority)
}

func TestTaskNameFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, queue.TaskNameFor(testPayload{}), queue.TaskNameFor(&testPayload{}),
		"pointer and value payloads share a name")
}
