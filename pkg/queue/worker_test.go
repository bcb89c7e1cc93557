package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/notifier/pkg/queue"
)

func newWorkerStorage(t *testing.T) *queue.MemoryStorage {
	t.Helper()
	storage := queue.NewMemoryStorage(queue.WithBackoff(queue.StepBackoff(time.Millisecond)))
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func startWorker(t *testing.T, w *queue.Worker) {
	t.Helper()
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
}

func TestWorker_ProcessesTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := newWorkerStorage(t)
	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var processed atomic.Int32
	w, err := queue.NewWorker(storage, queue.WithPullInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		processed.Add(1)
		return nil
	})))

	require.NoError(t, enq.Enqueue(ctx, testPayload{Value: "one"}))
	startWorker(t, w)

	assert.Eventually(t, func() bool {
		return processed.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_RetriesThenDeadLetters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := newWorkerStorage(t)
	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var attempts atomic.Int32
	var terminal atomic.Int32
	var terminalErr atomic.Value

	w, err := queue.NewWorker(storage,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithTerminalHandler(func(ctx context.Context, task *queue.Task, cause error) error {
			terminal.Add(1)
			terminalErr.Store(cause.Error())
			return nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		attempts.Add(1)
		return errors.New("smtp timeout")
	})))

	require.NoError(t, enq.Enqueue(ctx, testPayload{}, queue.WithMaxRetries(2)))
	startWorker(t, w)

	require.Eventually(t, func() bool {
		return terminal.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(2), attempts.Load(), "one attempt per retry budget slot")
	assert.Equal(t, "smtp timeout", terminalErr.Load())

	entries := storage.DLQEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "smtp timeout", entries[0].Error)
}

func TestWorker_MissingHandlerDeadLetters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	storage := newWorkerStorage(t)
	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	var terminal atomic.Int32
	w, err := queue.NewWorker(storage,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithTerminalHandler(func(ctx context.Context, task *queue.Task, cause error) error {
			terminal.Add(1)
			return nil
		}),
	)
	require.NoError(t, err)
	// Register a handler for some other task so Start() accepts the worker.
	require.NoError(t, w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		return nil
	})))

	require.NoError(t, enq.Enqueue(ctx, testPayload{}, queue.WithTaskName("unknown.Task")))
	startWorker(t, w)

	require.Eventually(t, func() bool {
		return terminal.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	entries := storage.DLQEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown.Task", entries[0].TaskName)
}

func TestWorker_StartValidation(t *testing.T) {
	t.Parallel()

	_, err := queue.NewWorker(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	storage := newWorkerStorage(t)
	w, err := queue.NewWorker(storage)
	require.NoError(t, err)

	assert.ErrorIs(t, w.Start(context.Background()), queue.ErrNoHandlers)
}
