package eventlog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory implementation of Storage for testing and
// local development.
type MemoryStorage struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]Event // notificationID -> events
}

// NewMemoryStorage creates a new in-memory event storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		events: make(map[uuid.UUID][]Event),
	}
}

func (s *MemoryStorage) Append(ctx context.Context, event Event) error {
	if event.NotificationID == uuid.Nil {
		return ErrNotificationIDRequired
	}
	if !event.Kind.Valid() {
		return ErrInvalidKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.NotificationID] = append(s.events[event.NotificationID], event)
	return nil
}

func (s *MemoryStorage) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[notificationID]
	out := make([]Event, len(events))
	copy(out, events)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (s *MemoryStorage) Stats(ctx context.Context, notificationID uuid.UUID) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, e := range s.events[notificationID] {
		switch e.Kind {
		case KindSent:
			stats.Sent++
		case KindOpened:
			stats.Opened++
			if stats.LastOpenedAt == nil || e.OccurredAt.After(*stats.LastOpenedAt) {
				at := e.OccurredAt
				stats.LastOpenedAt = &at
			}
		case KindClicked:
			stats.Clicked++
			if stats.LastClickedAt == nil || e.OccurredAt.After(*stats.LastClickedAt) {
				at := e.OccurredAt
				stats.LastClickedAt = &at
			}
		case KindFailed:
			stats.Failed++
		case KindBounced:
			stats.Bounced++
		}
	}
	return stats, nil
}

func (s *MemoryStorage) DeleteByNotification(ctx context.Context, notificationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.events, notificationID)
	return nil
}
