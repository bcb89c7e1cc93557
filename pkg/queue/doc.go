// Package queue provides a repository-agnostic delayed task queue.
//
// The package is organised around two components:
//
//   - Enqueuer — adds tasks to the queue, optionally with a delay or an
//     absolute not-before time
//   - Worker — claims due tasks and dispatches them to a registered Handler
//
// Components interact only through small repository interfaces, so the queue
// can be backed by any storage engine. Three implementations ship with the
// package: MemoryStorage for tests and local development, PGStorage on
// PostgreSQL (FOR UPDATE SKIP LOCKED claiming) and RedisStorage on Redis
// (sorted sets plus a Lua claim script).
//
// # Delivery semantics
//
// A task is invisible to workers until its scheduled time. A claimed task is
// locked for a bounded duration; if the worker dies, the lock expires and
// the task becomes claimable again, so every task is attempted at least
// once. A handler error sends the task back to pending after a backoff
// delay (configurable per storage via a BackoffFunc) until MaxRetries is
// reached, at which point the task is dead-lettered and the worker's
// TerminalHandler, if any, is invoked with the final error.
//
// # Usage
//
//	type SendEmailTask struct {
//	    NotificationID uuid.UUID `json:"notification_id"`
//	}
//
//	storage := queue.NewMemoryStorage(
//	    queue.WithBackoff(queue.StepBackoff(time.Minute, 5*time.Minute, 15*time.Minute)),
//	)
//
//	enq, _ := queue.NewEnqueuer(storage)
//	_ = enq.Enqueue(ctx, SendEmailTask{NotificationID: id},
//	    queue.WithScheduledAt(sendAt),
//	    queue.WithPriority(queue.PriorityHigh),
//	)
//
//	w, _ := queue.NewWorker(storage)
//	_ = w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, t SendEmailTask) error {
//	    return deliver(ctx, t.NotificationID)
//	}))
//	_ = w.Start(ctx)
package queue
