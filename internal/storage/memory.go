// ABOUTME: In-memory LocalStore backed by a slice guarded by a RWMutex
// ABOUTME: Used for ephemeral runs and as the reference backend in tests

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
)

// MemoryStore implements LocalStore without persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.FeedRecord
	changes *observe.Broadcaster[[]models.FeedRecord]
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: []models.FeedRecord{},
		changes: observe.NewBroadcasterWith([]models.FeedRecord{}),
	}
}

// ReplaceAll swaps the stored slice and publishes the new contents.
func (s *MemoryStore) ReplaceAll(ctx context.Context, records []models.FeedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.records = models.Clone(records)
	s.changes.Publish(models.Clone(s.records))
	return nil
}

// ObserveAll subscribes to store contents.
func (s *MemoryStore) ObserveAll(_ context.Context) (*observe.Subscription[[]models.FeedRecord], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.changes.Subscribe(), nil
}

// ListAll returns a copy of the stored records.
func (s *MemoryStore) ListAll(_ context.Context) ([]models.FeedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return models.Clone(s.records), nil
}

// Get returns a record by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (models.FeedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return models.FeedRecord{}, ErrClosed
	}
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.FeedRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	return len(s.records), nil
}

// Close closes all subscriptions. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.changes.Close()
	return nil
}
