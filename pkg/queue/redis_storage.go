package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the queue repositories on Redis. Task bodies live
// in plain keys as JSON; due ordering uses one sorted set per queue scored
// by the scheduled time, and claimed tasks sit in a processing sorted set
// scored by their lock deadline. The claim itself runs as a Lua script so
// two workers can never take the same task.
type RedisStorage struct {
	client    redis.UniversalClient
	keyPrefix string
	backoff   BackoffFunc
	retention time.Duration

	done chan struct{}
}

// RedisStorageOption configures a RedisStorage.
type RedisStorageOption func(*RedisStorage)

// WithKeyPrefix sets the namespace prefix for all queue keys.
func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithRedisBackoff sets the delay applied before a failed task becomes
// claimable again.
func WithRedisBackoff(backoff BackoffFunc) RedisStorageOption {
	return func(s *RedisStorage) {
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

// WithCompletedRetention sets how long completed task records are kept.
func WithCompletedRetention(d time.Duration) RedisStorageOption {
	return func(s *RedisStorage) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewRedisStorage creates a Redis-backed queue storage. A background
// goroutine returns tasks with expired locks to their pending queue; call
// Close to stop it.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) *RedisStorage {
	s := &RedisStorage{
		client:    client,
		keyPrefix: "notifier:queue",
		backoff:   LinearBackoff(30 * time.Second),
		retention: 24 * time.Hour,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.lockExpirationManager()
	return s
}

// Close stops the background lock reaper.
func (s *RedisStorage) Close() error {
	close(s.done)
	return nil
}

func (s *RedisStorage) taskKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:task:%s", s.keyPrefix, id)
}

func (s *RedisStorage) pendingKey(queue string) string {
	return fmt.Sprintf("%s:pending:%s", s.keyPrefix, queue)
}

func (s *RedisStorage) processingKey() string {
	return s.keyPrefix + ":processing"
}

func (s *RedisStorage) dlqKey() string {
	return s.keyPrefix + ":dlq"
}

// CreateTask implements EnqueuerRepository.
func (s *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.taskKey(task.ID), raw, 0)
	pipe.ZAdd(ctx, s.pendingKey(task.Queue), redis.Z{
		Score:  float64(task.ScheduledAt.UnixMilli()),
		Member: task.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store task: %w", err)
	}
	return nil
}

// claimScript picks the highest-priority due task from one pending set and
// moves it to the processing set in a single atomic step. It scans at most
// 100 due tasks; within a tier that is plenty for a fair pick.
//
// KEYS[1] pending set, KEYS[2] processing set
// ARGV[1] now (ms), ARGV[2] lock deadline (ms), ARGV[3] task key prefix
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 100)
if #due == 0 then
	return false
end
local bestId = false
local bestPriority = -1
for _, id in ipairs(due) do
	local raw = redis.call('GET', ARGV[3] .. id)
	if raw then
		local task = cjson.decode(raw)
		local priority = tonumber(task.priority) or 0
		if priority > bestPriority then
			bestPriority = priority
			bestId = id
		end
	else
		redis.call('ZREM', KEYS[1], id)
	end
end
if not bestId then
	return false
end
redis.call('ZREM', KEYS[1], bestId)
redis.call('ZADD', KEYS[2], ARGV[2], bestId)
return redis.call('GET', ARGV[3] .. bestId)
`)

// ClaimTask implements WorkerRepository.
func (s *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	now := time.Now()
	lockUntil := now.Add(lockDuration)

	for _, queue := range queues {
		raw, err := claimScript.Run(ctx, s.client,
			[]string{s.pendingKey(queue), s.processingKey()},
			now.UnixMilli(), lockUntil.UnixMilli(), s.keyPrefix+":task:",
		).Text()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to claim task from queue %q: %w", queue, err)
		}

		var task Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal claimed task: %w", err)
		}

		// Only the claimer mutates the body after the atomic move above.
		task.Status = TaskStatusProcessing
		task.LockedUntil = &lockUntil
		task.LockedBy = &workerID
		if err := s.saveTask(ctx, &task, 0); err != nil {
			return nil, err
		}
		return &task, nil
	}
	return nil, ErrNoTaskToClaim
}

// CompleteTask implements WorkerRepository. The finished record is kept for
// the retention window for inspection, then expires.
func (s *RedisStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != TaskStatusProcessing {
		return ErrTaskNotProcessing
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.processingKey(), taskID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to release completed task: %w", err)
	}
	return s.saveTask(ctx, task, s.retention)
}

// FailTask implements WorkerRepository.
func (s *RedisStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != TaskStatusProcessing {
		return ErrTaskNotProcessing
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.processingKey(), taskID.String())

	if task.RetryCount >= task.MaxRetries {
		task.Status = TaskStatusFailed
	} else {
		task.Status = TaskStatusPending
		task.ScheduledAt = time.Now().Add(s.backoff(task.RetryCount))
		pipe.ZAdd(ctx, s.pendingKey(task.Queue), redis.Z{
			Score:  float64(task.ScheduledAt.UnixMilli()),
			Member: taskID.String(),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reschedule failed task: %w", err)
	}
	return s.saveTask(ctx, task, 0)
}

// MoveToDLQ implements WorkerRepository. Dead-lettered entries live in a
// list, newest first.
func (s *RedisStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	entry := TaskDLQ{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		Priority:   task.Priority,
		RetryCount: task.RetryCount,
		FailedAt:   now,
		CreatedAt:  now,
	}
	if task.Error != nil {
		entry.Error = *task.Error
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.dlqKey(), raw)
	pipe.ZRem(ctx, s.pendingKey(task.Queue), taskID.String())
	pipe.ZRem(ctx, s.processingKey(), taskID.String())
	pipe.Del(ctx, s.taskKey(taskID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move task to DLQ: %w", err)
	}
	return nil
}

// ExtendLock implements WorkerRepository.
func (s *RedisStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != TaskStatusProcessing {
		return ErrTaskNotProcessing
	}

	lockUntil := time.Now().Add(duration)
	task.LockedUntil = &lockUntil

	if err := s.client.ZAdd(ctx, s.processingKey(), redis.Z{
		Score:  float64(lockUntil.UnixMilli()),
		Member: taskID.String(),
	}).Err(); err != nil {
		return fmt.Errorf("failed to extend task lock: %w", err)
	}
	return s.saveTask(ctx, task, 0)
}

func (s *RedisStorage) loadTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	raw, err := s.client.Get(ctx, s.taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

func (s *RedisStorage) saveTask(ctx context.Context, task *Task, ttl time.Duration) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.client.Set(ctx, s.taskKey(task.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// lockExpirationManager returns tasks with expired locks to their pending
// queue so work claimed by a dead worker is not lost.
func (s *RedisStorage) lockExpirationManager() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireLocks(context.Background())
		case <-s.done:
			return
		}
	}
}

func (s *RedisStorage) expireLocks(ctx context.Context) {
	now := time.Now()
	expired, err := s.client.ZRangeByScore(ctx, s.processingKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil || len(expired) == 0 {
		return
	}

	for _, member := range expired {
		taskID, err := uuid.Parse(member)
		if err != nil {
			s.client.ZRem(ctx, s.processingKey(), member)
			continue
		}

		task, err := s.loadTask(ctx, taskID)
		if err != nil {
			s.client.ZRem(ctx, s.processingKey(), member)
			continue
		}

		task.Status = TaskStatusPending
		task.LockedUntil = nil
		task.LockedBy = nil

		pipe := s.client.TxPipeline()
		pipe.ZRem(ctx, s.processingKey(), member)
		pipe.ZAdd(ctx, s.pendingKey(task.Queue), redis.Z{
			Score:  float64(task.ScheduledAt.UnixMilli()),
			Member: member,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			continue
		}
		_ = s.saveTask(ctx, task, 0)
	}
}
