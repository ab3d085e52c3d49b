// ABOUTME: Remote source contract for fetching the complete current feed
// ABOUTME: One call per fetch; implementations return every record or fail as a whole

package source

import (
	"context"

	"github.com/harper/feedsync/internal/models"
)

// Source fetches the full current feed. A call either returns the complete
// record set or an error; it never returns a partial set.
type Source interface {
	FetchFeed(ctx context.Context) ([]models.FeedRecord, error)
}

// Func adapts an ordinary function to Source.
type Func func(ctx context.Context) ([]models.FeedRecord, error)

// FetchFeed calls f.
func (f Func) FetchFeed(ctx context.Context) ([]models.FeedRecord, error) {
	return f(ctx)
}

// Static returns a Source that always yields a copy of records.
func Static(records []models.FeedRecord) Source {
	snapshot := models.Clone(records)
	return Func(func(ctx context.Context) ([]models.FeedRecord, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return models.Clone(snapshot), nil
	})
}
