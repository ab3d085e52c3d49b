// ABOUTME: LocalStore interface and shared helpers for the feed record cache
// ABOUTME: Defines the contract every cache backend implements: bulk replace, observe, read

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
)

// MinPrefixLength is the shortest ID prefix accepted by Lookup.
const MinPrefixLength = 4

var (
	// ErrNotFound is returned when no record matches an ID or prefix.
	ErrNotFound = errors.New("record not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrAmbiguous is returned when an ID prefix matches more than one record.
	ErrAmbiguous = errors.New("ambiguous prefix")
)

// LocalStore is a keyed persistent collection of feed records.
type LocalStore interface {
	// ReplaceAll atomically removes every stored record and inserts records.
	// Readers observe either the old set or the new set, never a mix.
	ReplaceAll(ctx context.Context, records []models.FeedRecord) error

	// ObserveAll subscribes to the full record set. The subscription yields the
	// current contents first and then the new contents after every write.
	// Delivered slices are shared and must be treated as read-only.
	ObserveAll(ctx context.Context) (*observe.Subscription[[]models.FeedRecord], error)

	// ListAll returns the current contents in write order.
	ListAll(ctx context.Context) ([]models.FeedRecord, error)

	// Get returns one record by exact ID.
	Get(ctx context.Context, id string) (models.FeedRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases resources and closes all change subscriptions.
	Close() error
}

// Lookup finds a record by exact ID first, then by unique ID prefix.
func Lookup(ctx context.Context, s LocalStore, ref string) (models.FeedRecord, error) {
	record, err := s.Get(ctx, ref)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.FeedRecord{}, err
	}

	if len(ref) < MinPrefixLength {
		return models.FeedRecord{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	records, err := s.ListAll(ctx)
	if err != nil {
		return models.FeedRecord{}, err
	}

	var matches []models.FeedRecord
	for _, r := range records {
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return models.FeedRecord{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.FeedRecord{}, fmt.Errorf("%w %s matches %d records", ErrAmbiguous, ref, len(matches))
	}
}
