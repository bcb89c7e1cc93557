package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when no queue is specified.
const DefaultQueueName = "default"

// TaskStatus represents the status of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Priority represents task priority (0-100, higher is more important).
type Priority int8

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range.
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Task represents one unit of delayed work. A task is not eligible for
// claiming before ScheduledAt; a claimed task is invisible to other workers
// until LockedUntil passes.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskDLQ is a dead-lettered task: one that exhausted its retries or could
// not be handled at all, kept for manual inspection and recovery.
type TaskDLQ struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Queue      string    `json:"queue"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Priority   Priority  `json:"priority"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// BackoffFunc returns the delay before the next attempt, given the number of
// failed attempts so far (1 after the first failure).
type BackoffFunc func(retryCount int) time.Duration

// LinearBackoff grows the delay linearly: step, 2*step, 3*step, ...
func LinearBackoff(step time.Duration) BackoffFunc {
	return func(retryCount int) time.Duration {
		if retryCount < 1 {
			retryCount = 1
		}
		return time.Duration(retryCount) * step
	}
}

// StepBackoff returns the configured delay for each attempt; attempts past
// the end of the slice reuse the last delay.
func StepBackoff(steps ...time.Duration) BackoffFunc {
	return func(retryCount int) time.Duration {
		if len(steps) == 0 {
			return 0
		}
		idx := retryCount - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(steps) {
			idx = len(steps) - 1
		}
		return steps[idx]
	}
}

// Repository combines the enqueuer and worker storage interfaces, the shape
// implemented by the memory, Postgres and Redis backends.
type Repository interface {
	EnqueuerRepository
	WorkerRepository
}
