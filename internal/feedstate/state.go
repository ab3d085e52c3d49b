// ABOUTME: Derived feed state and the synchronizer contract the controller consumes
// ABOUTME: FeedState is recomputed on every change and never persisted

package feedstate

import (
	"context"

	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
)

// FallbackMessage is shown when a failure carries no description.
const FallbackMessage = "oops!"

// Synchronizer is the refresh protocol the controller drives.
type Synchronizer interface {
	Refresh(ctx context.Context) error
	ObserveItems(ctx context.Context) (*observe.Subscription[[]models.FeedRecord], error)
}

// FeedState is a snapshot of everything a consumer renders.
type FeedState struct {
	Items     []models.FeedRecord `json:"items"`
	IsLoading bool                `json:"is_loading"`
	IsEmpty   bool                `json:"is_empty"`
	LastError string              `json:"last_error,omitempty"`
}

func (s FeedState) clone() FeedState {
	s.Items = models.Clone(s.Items)
	return s
}
