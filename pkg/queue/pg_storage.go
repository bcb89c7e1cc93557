package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schooldesk/notifier/pkg/pg"
)

// PGStorage is a PostgreSQL implementation of the queue repositories backed
// by pgx. Claiming relies on FOR UPDATE SKIP LOCKED so concurrent workers
// never contend on the same row, and expired locks are reclaimed inline by
// the claim query rather than by a background reaper.
type PGStorage struct {
	pool    *pgxpool.Pool
	backoff BackoffFunc
}

// PGStorageOption configures a PGStorage.
type PGStorageOption func(*PGStorage)

// WithPGBackoff sets the delay applied before a failed task becomes
// claimable again.
func WithPGBackoff(backoff BackoffFunc) PGStorageOption {
	return func(s *PGStorage) {
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

// NewPGStorage creates a Postgres-backed queue storage.
func NewPGStorage(pool *pgxpool.Pool, opts ...PGStorageOption) *PGStorage {
	s := &PGStorage{
		pool:    pool,
		backoff: LinearBackoff(30 * time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask implements EnqueuerRepository.
func (s *PGStorage) CreateTask(ctx context.Context, task *Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, queue, task_name, payload, status, priority, retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, task.Queue, task.TaskName, task.Payload, task.Status,
		task.Priority, task.RetryCount, task.MaxRetries, task.ScheduledAt, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// ClaimTask implements WorkerRepository. One round trip: the subquery picks
// the best eligible row with SKIP LOCKED, the UPDATE claims it.
func (s *PGStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tasks SET
			status = $1,
			locked_until = now() + $2,
			locked_by = $3
		WHERE id = (
			SELECT id FROM tasks
			WHERE queue = ANY($4)
				AND scheduled_at <= now()
				AND (
					status = $5
					OR (status = $1 AND locked_until < now())
				)
			ORDER BY priority DESC, scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, queue, task_name, payload, status, priority, retry_count, max_retries,
			scheduled_at, locked_until, locked_by, processed_at, error, created_at`,
		TaskStatusProcessing, lockDuration, workerID, queues, TaskStatusPending,
	)

	task, err := scanTask(row)
	if pg.IsNotFoundError(err) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return task, nil
}

// CompleteTask implements WorkerRepository.
func (s *PGStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = $2,
			processed_at = now(),
			locked_until = NULL,
			locked_by = NULL
		WHERE id = $1 AND status = $3`,
		taskID, TaskStatusCompleted, TaskStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotProcessing
	}
	return nil
}

// FailTask implements WorkerRepository. The backoff delay is computed in Go
// and applied to scheduled_at when retries remain.
func (s *PGStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	var retryCount, maxRetries int
	err := s.pool.QueryRow(ctx, `SELECT retry_count, max_retries FROM tasks WHERE id = $1`, taskID).
		Scan(&retryCount, &maxRetries)
	if pg.IsNotFoundError(err) {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load task for failure bookkeeping: %w", err)
	}

	retryCount++
	status := TaskStatusFailed
	var reschedule *time.Time
	if retryCount < maxRetries {
		status = TaskStatusPending
		at := time.Now().Add(s.backoff(retryCount))
		reschedule = &at
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			status = $2,
			retry_count = $3,
			error = $4,
			scheduled_at = COALESCE($5, scheduled_at),
			locked_until = NULL,
			locked_by = NULL
		WHERE id = $1 AND status = $6`,
		taskID, status, retryCount, errorMsg, reschedule, TaskStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotProcessing
	}
	return nil
}

// MoveToDLQ implements WorkerRepository. The insert and delete run in one
// transaction so the task is never lost in between.
func (s *PGStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx, `
		INSERT INTO tasks_dlq (id, task_id, queue, task_name, payload, priority, error, retry_count, failed_at, created_at)
		SELECT gen_random_uuid(), id, queue, task_name, payload, priority, COALESCE(error, ''), retry_count, now(), now()
		FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("failed to insert DLQ entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to remove dead-lettered task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit DLQ move: %w", err)
	}
	return nil
}

// ExtendLock implements WorkerRepository.
func (s *PGStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET locked_until = now() + $2
		WHERE id = $1 AND status = $3`,
		taskID, duration, TaskStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to extend task lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotProcessing
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var task Task
	err := row.Scan(
		&task.ID, &task.Queue, &task.TaskName, &task.Payload, &task.Status,
		&task.Priority, &task.RetryCount, &task.MaxRetries, &task.ScheduledAt,
		&task.LockedUntil, &task.LockedBy, &task.ProcessedAt, &task.Error, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
