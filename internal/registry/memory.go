package registry

import (
	"context"
	"sync"
	"time"

	"github.com/deployra/launcher/internal/models"
)

// MemoryStore keeps records for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Deployment
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.Deployment)}
}

func (s *MemoryStore) Create(_ context.Context, d models.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[d.ID]; exists {
		return ErrAlreadyExists
	}
	rec := d.Clone()
	s.records[d.ID] = &rec
	s.order = append(s.order, d.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return models.Deployment{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns records in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]models.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Deployment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, mutate Mutator) (models.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return models.Deployment{}, ErrNotFound
	}
	draft := rec.Clone()
	if err := mutate(&draft); err != nil {
		return models.Deployment{}, err
	}
	// id is immutable
	draft.ID = rec.ID
	draft.UpdatedAt = time.Now().UTC()
	*rec = draft
	return draft.Clone(), nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
