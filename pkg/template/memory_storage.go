package template

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory implementation of Storage for testing and
// local development. Templates are kept in insertion order.
type MemoryStorage struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]Template
	order     []uuid.UUID
}

// NewMemoryStorage creates a new in-memory template storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		templates: make(map[uuid.UUID]Template),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, tpl Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[tpl.ID]; exists {
		return fmt.Errorf("template %s already exists", tpl.ID)
	}
	if tpl.IsActive && s.activeExists(tpl.Type, tpl.ID) {
		return fmt.Errorf("%w %q", ErrDuplicateActive, tpl.Type)
	}

	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now()
	}
	tpl.UpdatedAt = tpl.CreatedAt

	s.templates[tpl.ID] = tpl
	s.order = append(s.order, tpl.ID)
	return nil
}

func (s *MemoryStorage) Update(ctx context.Context, tpl Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.templates[tpl.ID]
	if !exists {
		return ErrTemplateNotFound
	}
	if tpl.IsActive && s.activeExists(tpl.Type, tpl.ID) {
		return fmt.Errorf("%w %q", ErrDuplicateActive, tpl.Type)
	}

	tpl.CreatedAt = existing.CreatedAt
	tpl.UpdatedAt = time.Now()
	s.templates[tpl.ID] = tpl
	return nil
}

func (s *MemoryStorage) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, exists := s.templates[id]
	if !exists {
		return nil, ErrTemplateNotFound
	}
	return &tpl, nil
}

func (s *MemoryStorage) FindActiveByType(ctx context.Context, kind string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Insertion order keeps resolution deterministic.
	for _, id := range s.order {
		tpl := s.templates[id]
		if tpl.Type == kind && tpl.IsActive {
			return &tpl, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrNotFound, kind)
}

func (s *MemoryStorage) List(ctx context.Context) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.templates[id])
	}
	return out, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[id]; !exists {
		return ErrTemplateNotFound
	}

	delete(s.templates, id)
	s.order = slices.DeleteFunc(s.order, func(v uuid.UUID) bool { return v == id })
	return nil
}

// activeExists reports whether an active template for kind exists, ignoring
// the template with the given id. Callers must hold the lock.
func (s *MemoryStorage) activeExists(kind string, ignore uuid.UUID) bool {
	for id, tpl := range s.templates {
		if id != ignore && tpl.Type == kind && tpl.IsActive {
			return true
		}
	}
	return false
}
