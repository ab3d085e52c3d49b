// ABOUTME: Cache-backed synchronizer reconciling a local store with a remote source
// ABOUTME: Coalesces concurrent refreshes into one fetch and one atomic full replace

package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
	"github.com/harper/feedsync/internal/source"
	"github.com/harper/feedsync/internal/storage"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/singleflight"
)

// refreshKey is the single-flight key; there is only ever one refresh kind.
const refreshKey = "refresh"

// Syncer owns the refresh protocol between a Source and a LocalStore.
type Syncer struct {
	store   storage.LocalStore
	src     source.Source
	group   singleflight.Group
	timeout time.Duration
	logger  *slog.Logger
	clock   clockz.Clock

	operations atomic.Int64
	calls      atomic.Int64
	shared     atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
}

// Stats are cumulative refresh counters.
type Stats struct {
	Operations int64 `json:"operations"`
	Calls      int64 `json:"calls"`
	Shared     int64 `json:"shared"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithTimeout bounds a single refresh operation. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		s.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for durations.
func WithClock(clock clockz.Clock) Option {
	return func(s *Syncer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a Syncer. A nil store or source panics with *ConfigurationError.
func New(store storage.LocalStore, src source.Source, opts ...Option) *Syncer {
	if store == nil {
		panic(&ConfigurationError{Component: "syncer", Reason: "local store is nil"})
	}
	if src == nil {
		panic(&ConfigurationError{Component: "syncer", Reason: "remote source is nil"})
	}

	s := &Syncer{
		store:  store,
		src:    src,
		logger: slog.Default(),
		clock:  clockz.RealClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches the remote feed and replaces the local cache with it.
//
// If an operation is already in flight the call attaches to it and receives
// its outcome; no second fetch is made. The shared operation is detached from
// ctx: when ctx ends this call returns ctx.Err() while the operation carries
// on for any other callers. Failures are returned as *RefreshError and leave
// the store untouched.
func (s *Syncer) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.calls.Add(1)

	base := context.WithoutCancel(ctx)
	ch := s.group.DoChan(refreshKey, func() (interface{}, error) {
		return s.run(base)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.shared.Add(1)
			opID, _ := res.Val.(string)
			capitan.Emit(ctx, RefreshShared, KeyOperation.Field(opID))
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run performs one operation: one fetch, then at most one store replace.
// It returns the operation id as its value.
func (s *Syncer) run(ctx context.Context) (string, error) {
	opID := uuid.NewString()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.clock.Now()
	s.operations.Add(1)
	capitan.Emit(ctx, RefreshStarted, KeyOperation.Field(opID))
	s.logger.Debug("refresh started", "operation", opID)

	records, err := s.fetch(ctx)
	if err != nil {
		return opID, s.fail(ctx, opID, start, FetchFailure, err)
	}

	if err := s.replace(ctx, records); err != nil {
		return opID, s.fail(ctx, opID, start, StoreWriteFailure, err)
	}

	elapsed := s.clock.Since(start)
	s.succeeded.Add(1)
	capitan.Emit(ctx, RefreshSucceeded,
		KeyOperation.Field(opID),
		KeyRecordCount.Field(len(records)),
		KeyDuration.Field(elapsed),
	)
	s.logger.Info("refresh succeeded", "operation", opID, "records", len(records), "duration", elapsed)
	return opID, nil
}

// fetch calls the source, converting panics and invalid sets into errors.
func (s *Syncer) fetch(ctx context.Context) (records []models.FeedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("source panicked: %v", r)
		}
	}()

	records, err = s.src.FetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateSet(records); err != nil {
		return nil, err
	}
	return records, nil
}

// replace writes the set to the store, converting a panic into an error.
func (s *Syncer) replace(ctx context.Context, records []models.FeedRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panicked: %v", r)
		}
	}()
	return s.store.ReplaceAll(ctx, records)
}

func (s *Syncer) fail(ctx context.Context, opID string, start time.Time, kind Kind, cause error) error {
	elapsed := s.clock.Since(start)
	s.failed.Add(1)

	rerr := &RefreshError{Op: opID, Kind: kind, Err: cause}
	capitan.Emit(ctx, RefreshFailed,
		KeyOperation.Field(opID),
		KeyFailureKind.Field(kind.String()),
		KeyError.Field(cause.Error()),
		KeyDuration.Field(elapsed),
	)
	s.logger.Warn("refresh failed", "operation", opID, "kind", kind.String(), "error", cause, "duration", elapsed)
	return rerr
}

// ObserveItems returns a live view of the cached records. It reflects every
// store write, including writes that did not go through Refresh.
func (s *Syncer) ObserveItems(ctx context.Context) (*observe.Subscription[[]models.FeedRecord], error) {
	return s.store.ObserveAll(ctx)
}

// Store returns the underlying local store.
func (s *Syncer) Store() storage.LocalStore {
	return s.store
}

// Stats returns a snapshot of the refresh counters.
func (s *Syncer) Stats() Stats {
	return Stats{
		Operations: s.operations.Load(),
		Calls:      s.calls.Load(),
		Shared:     s.shared.Load(),
		Succeeded:  s.succeeded.Load(),
		Failed:     s.failed.Load(),
	}
}
