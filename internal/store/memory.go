package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wardrobehq/wardrobe/pkg/models"
)

// MemoryStore is an in-memory Store for tests and local development. It
// enforces the same status transition table as PostgresStore.
type MemoryStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uuid.UUID]*models.Item)}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Item
	for _, item := range s.items {
		if filter.OwnerID != uuid.Nil && item.OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, item.Status) {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && !item.UpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ItemStatus, opts ...UpdateOption) error {
	var params updateParams
	for _, opt := range opts {
		opt(&params)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if !models.CanTransition(item.Status, status) {
		return ErrInvalidTransition
	}
	item.Status = status
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		item.ErrorMessage = &msg
	}
	if params.ClearError {
		item.ErrorMessage = nil
	}
	if params.IncrementRetry {
		item.RetryCount++
	}
	item.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetProcessedResult(ctx context.Context, id uuid.UUID, stagingKey, imageURL string, meta models.ItemMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if !models.CanTransition(item.Status, models.ItemStatusProcessed) {
		return ErrInvalidTransition
	}
	item.Status = models.ItemStatusProcessed
	item.StagingKey = stagingKey
	item.ImageURL = imageURL
	item.Metadata = meta
	item.ErrorMessage = nil
	item.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) PromoteItem(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.OwnerID != ownerID {
		return ErrNotFound
	}
	if !models.CanTransition(item.Status, models.ItemStatusCompleted) {
		return ErrInvalidTransition
	}
	item.Status = models.ItemStatusCompleted
	item.ImageURL = imageURL
	item.StagingKey = ""
	item.UpdatedAt = time.Now()
	return nil
}

// SetUpdatedAt backdates an item for sweep tests.
func (s *MemoryStore) SetUpdatedAt(id uuid.UUID, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.UpdatedAt = t
	}
}

func containsStatus(statuses []models.ItemStatus, status models.ItemStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
