// ABOUTME: LocalStore backed by Charm KV, synced across devices
// ABOUTME: The whole record set lives under one key so a replace is a single atomic Set

package charm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/charm/kv"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
	"github.com/harper/feedsync/internal/storage"
)

// RecordsKey is the KV key holding the JSON-encoded record set.
const RecordsKey = "feedsync:records"

// Store implements storage.LocalStore on top of a Client.
type Store struct {
	client  *Client
	writeMu sync.Mutex
	changes *observe.Broadcaster[[]models.FeedRecord]
	closed  bool
}

var _ storage.LocalStore = (*Store)(nil)

// NewStore loads the current record set and returns a store publishing
// changes from it.
func NewStore(client *Client) (*Store, error) {
	s := &Store{client: client}

	initial, err := s.ListAll(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load initial records: %w", err)
	}
	s.changes = observe.NewBroadcasterWith(initial)
	return s, nil
}

// ReplaceAll overwrites the record set key.
func (s *Store) ReplaceAll(ctx context.Context, records []models.FeedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	snapshot := models.Clone(records)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	if err := s.client.Do(func(k *kv.KV) error {
		return k.Set([]byte(RecordsKey), data)
	}); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	s.changes.Publish(snapshot)
	return nil
}

// ObserveAll subscribes to store contents.
func (s *Store) ObserveAll(_ context.Context) (*observe.Subscription[[]models.FeedRecord], error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil, storage.ErrClosed
	}
	return s.changes.Subscribe(), nil
}

// ListAll reads and decodes the record set. A missing key is an empty set.
func (s *Store) ListAll(_ context.Context) ([]models.FeedRecord, error) {
	records := []models.FeedRecord{}

	err := s.client.DoReadOnly(func(k *kv.KV) error {
		keys, err := k.Keys()
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}

		found := false
		for _, key := range keys {
			if string(key) == RecordsKey {
				found = true
				break
			}
		}
		if !found {
			return nil
		}

		data, err := k.Get([]byte(RecordsKey))
		if err != nil {
			return fmt.Errorf("get records: %w", err)
		}
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &records)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one record by exact ID.
func (s *Store) Get(ctx context.Context, id string) (models.FeedRecord, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return models.FeedRecord{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.FeedRecord{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Close closes change subscriptions. The KV database is opened per operation.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.changes.Close()
	return nil
}
