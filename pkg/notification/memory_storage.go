package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory implementation of Storage for testing and
// local development. All mutations are serialized behind one mutex, which
// trivially satisfies the single-writer-per-identity requirement.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*Notification
	now           func() time.Time
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithMemoryClock overrides the time source, used by tests.
func WithMemoryClock(now func() time.Time) MemoryStorageOption {
	return func(s *MemoryStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		notifications: make(map[uuid.UUID]*Notification),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStorage) Create(ctx context.Context, n *Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID]; exists {
		return fmt.Errorf("notification %s already exists", n.ID)
	}

	now := s.now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = n.CreatedAt

	clone := *n
	s.notifications[n.ID] = &clone
	return nil
}

func (s *MemoryStorage) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, exists := s.notifications[id]
	if !exists {
		return nil, ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (s *MemoryStorage) List(ctx context.Context, filter Filter) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for _, n := range s.notifications {
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && n.Type != *filter.Type {
			continue
		}
		if filter.RecipientEmail != "" && n.RecipientEmail != filter.RecipientEmail {
			continue
		}
		out = append(out, *n)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	start := filter.Offset
	if start > len(out) {
		return []Notification{}, nil
	}
	end := len(out)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return out[start:end], nil
}

func (s *MemoryStorage) UpdateDraft(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.notifications[n.ID]
	if !exists {
		return ErrNotFound
	}
	if existing.Status != StatusDraft {
		return ErrNotDraft
	}

	existing.RecipientEmail = n.RecipientEmail
	existing.RecipientName = n.RecipientName
	existing.Subject = n.Subject
	existing.Body = n.Body
	existing.ScheduledAt = n.ScheduledAt
	existing.UpdatedAt = s.now()

	clone := *existing
	*n = clone
	return nil
}

func (s *MemoryStorage) PromoteToScheduled(ctx context.Context, id uuid.UUID) error {
	return s.transition(id, StatusDraft, StatusScheduled, ErrNotDraft, nil)
}

func (s *MemoryStorage) ResetForRetry(ctx context.Context, id uuid.UUID) error {
	return s.transition(id, StatusFailed, StatusScheduled, ErrNotFailed, func(n *Notification) {
		n.ErrorMessage = nil
	})
}

func (s *MemoryStorage) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return s.transition(id, StatusScheduled, StatusSent, ErrNotScheduled, func(n *Notification) {
		n.SentAt = &sentAt
	})
}

func (s *MemoryStorage) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return s.transition(id, StatusScheduled, StatusFailed, ErrNotScheduled, func(n *Notification) {
		n.ErrorMessage = &errorMessage
	})
}

func (s *MemoryStorage) RecordFailure(ctx context.Context, id uuid.UUID, errorMessage string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.notifications[id]
	if !exists {
		return 0, ErrNotFound
	}
	if n.Status != StatusScheduled {
		return 0, ErrNotScheduled
	}

	n.RetryCount++
	n.ErrorMessage = &errorMessage
	n.UpdatedAt = s.now()
	return n.RetryCount, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, id uuid.UUID, allowed ...Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.notifications[id]
	if !exists {
		return ErrNotFound
	}

	permitted := len(allowed) == 0
	for _, status := range allowed {
		if n.Status == status {
			permitted = true
			break
		}
	}
	if !permitted {
		return ErrNotDeletable
	}

	delete(s.notifications, id)
	return nil
}

// transition performs a verify-status-then-update under the lock. conflict is
// returned when the record exists but is not in the expected from state.
func (s *MemoryStorage) transition(id uuid.UUID, from, to Status, conflict error, apply func(*Notification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, exists := s.notifications[id]
	if !exists {
		return ErrNotFound
	}
	if n.Status != from {
		return conflict
	}

	n.Status = to
	if apply != nil {
		apply(n)
	}
	n.UpdatedAt = s.now()
	return nil
}
