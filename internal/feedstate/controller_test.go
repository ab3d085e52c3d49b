// ABOUTME: Tests for the observable state controller
// ABOUTME: Drives a real syncer over a memory store with gated and failing sources

package feedstate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
	"github.com/harper/feedsync/internal/source"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/syncer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store   *storage.MemoryStore
	syncer  *syncer.Syncer
	ctrl    *Controller
	fetches atomic.Int32
	release chan struct{}
	fail    atomic.Pointer[error]
	records []models.FeedRecord
}

// newHarness wires a controller to a syncer whose source blocks until release
// is closed when gated is true.
func newHarness(t *testing.T, records []models.FeedRecord, gated bool) *harness {
	t.Helper()
	h := &harness{
		store:   storage.NewMemoryStore(),
		release: make(chan struct{}),
		records: records,
	}
	if !gated {
		close(h.release)
	}

	src := source.Func(func(ctx context.Context) ([]models.FeedRecord, error) {
		h.fetches.Add(1)
		select {
		case <-h.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if errp := h.fail.Load(); errp != nil {
			return nil, *errp
		}
		return models.Clone(h.records), nil
	})

	h.syncer = syncer.New(h.store, src)
	h.ctrl = New(h.syncer)
	t.Cleanup(func() {
		h.ctrl.Dispose()
		h.store.Close()
	})
	return h
}

func (h *harness) failWith(err error) {
	h.fail.Store(&err)
}

func waitForState(t *testing.T, c *Controller, cond func(FeedState) bool) FeedState {
	t.Helper()
	var last FeedState
	require.Eventually(t, func() bool {
		last = c.State()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, "state never reached expected condition")
	return last
}

func TestNew_NilSynchronizerPanics(t *testing.T) {
	assert.PanicsWithError(t, "feedstate misconfigured: synchronizer is nil", func() {
		New(nil)
	})
}

func TestRefresh_PopulatesEmptyStore(t *testing.T) {
	h := newHarness(t, []models.FeedRecord{{ID: "1", Title: "First"}}, false)
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.ctrl.Refresh()

	state := waitForState(t, h.ctrl, func(s FeedState) bool {
		return !s.IsLoading && len(s.Items) == 1
	})
	assert.Equal(t, "1", state.Items[0].ID)
	assert.False(t, state.IsEmpty)
	assert.Empty(t, state.LastError)

	n, err := h.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRefresh_SetsLoadingSynchronously(t *testing.T) {
	h := newHarness(t, []models.FeedRecord{{ID: "1"}}, true)
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.ctrl.Refresh()

	state := h.ctrl.State()
	assert.True(t, state.IsLoading)
	assert.True(t, state.IsEmpty)

	loading, ok := h.ctrl.Loading().Value()
	assert.True(t, ok)
	assert.True(t, loading)

	close(h.release)
	waitForState(t, h.ctrl, func(s FeedState) bool { return !s.IsLoading })
}

func TestRefresh_TransportErrorKeepsStore(t *testing.T) {
	h := newHarness(t, nil, false)
	h.failWith(errors.New("network unreachable"))
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.ctrl.Refresh()

	state := waitForState(t, h.ctrl, func(s FeedState) bool {
		return !s.IsLoading && s.LastError != ""
	})
	assert.Equal(t, "network unreachable", state.LastError)
	assert.Empty(t, state.Items)

	n, err := h.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRefresh_FailureKeepsCachedItemsVisible(t *testing.T) {
	h := newHarness(t, nil, false)
	require.NoError(t, h.store.ReplaceAll(context.Background(), []models.FeedRecord{{ID: "cached"}}))
	require.NoError(t, h.ctrl.Start(context.Background()))
	waitForState(t, h.ctrl, func(s FeedState) bool { return len(s.Items) == 1 })

	h.failWith(errors.New("timeout"))
	h.ctrl.Refresh()

	state := waitForState(t, h.ctrl, func(s FeedState) bool {
		return !s.IsLoading && s.LastError != ""
	})
	require.Len(t, state.Items, 1)
	assert.Equal(t, "cached", state.Items[0].ID)
	assert.False(t, state.IsEmpty)
}

func TestRefresh_ConcurrentRefreshesShareFetch(t *testing.T) {
	h := newHarness(t, []models.FeedRecord{{ID: "1"}}, true)
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.ctrl.Refresh()
	h.ctrl.Refresh()

	require.Eventually(t, func() bool { return h.syncer.Stats().Calls == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(h.release)

	state := waitForState(t, h.ctrl, func(s FeedState) bool {
		return !s.IsLoading && len(s.Items) == 1
	})
	assert.Empty(t, state.LastError)
	assert.Equal(t, int32(1), h.fetches.Load())

	stats := h.syncer.Stats()
	assert.Equal(t, int64(1), stats.Operations)
	assert.Equal(t, int64(1), stats.Succeeded)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestRefresh_LoadingStaysTrueUntilLastRefreshEnds(t *testing.T) {
	var calls atomic.Int32
	first := make(chan struct{})
	second := make(chan struct{})
	fake := &fakeSynchronizer{
		items: observe.NewBroadcasterWith([]models.FeedRecord{}),
		refresh: func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				<-first
			} else {
				<-second
			}
			return nil
		},
	}
	c := New(fake)
	defer c.Dispose()
	require.NoError(t, c.Start(context.Background()))

	c.Refresh()
	c.Refresh()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	close(first)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, c.State().IsLoading, "expected loading while a refresh is still pending")

	close(second)
	waitForState(t, c, func(s FeedState) bool { return !s.IsLoading })
}

func TestErrors_EventConsumedOnce(t *testing.T) {
	h := newHarness(t, nil, false)
	h.failWith(errors.New("bad gateway"))
	require.NoError(t, h.ctrl.Start(context.Background()))

	sub := h.ctrl.Errors().Subscribe()
	defer sub.Close()

	h.ctrl.Refresh()

	var ev *observe.Event[string]
	select {
	case ev = <-sub.C():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error event")
	}

	msg, ok := ev.Take()
	require.True(t, ok)
	assert.Equal(t, "bad gateway", msg)

	// A late observer sees the same event but cannot consume it again.
	late := h.ctrl.Errors().Subscribe()
	defer late.Close()
	replayed := <-late.C()
	_, ok = replayed.Take()
	assert.False(t, ok)
	assert.Equal(t, "bad gateway", replayed.Peek())
}

func TestErrors_UnconsumedEventWaitsForFirstObserver(t *testing.T) {
	h := newHarness(t, nil, false)
	h.failWith(errors.New("offline"))
	require.NoError(t, h.ctrl.Start(context.Background()))

	h.ctrl.Refresh()
	waitForState(t, h.ctrl, func(s FeedState) bool { return s.LastError != "" })

	sub := h.ctrl.Errors().Subscribe()
	defer sub.Close()
	ev := <-sub.C()
	msg, ok := ev.Take()
	assert.True(t, ok)
	assert.Equal(t, "offline", msg)
}

func TestItems_DirectStoreWritesAreObserved(t *testing.T) {
	h := newHarness(t, nil, false)
	require.NoError(t, h.ctrl.Start(context.Background()))

	sub := h.ctrl.Items().Subscribe()
	defer sub.Close()

	require.NoError(t, h.store.ReplaceAll(context.Background(), []models.FeedRecord{{ID: "warm"}}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-sub.C():
			if len(got) == 1 && got[0].ID == "warm" {
				empty, _ := h.ctrl.Empty().Value()
				assert.False(t, empty)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for direct write")
		}
	}
}

func TestStart_Idempotent(t *testing.T) {
	fake := &fakeSynchronizer{items: observe.NewBroadcasterWith([]models.FeedRecord{})}
	c := New(fake)
	defer c.Dispose()

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, int32(1), fake.observes.Load())
	assert.Equal(t, 1, fake.items.Subscribers())
}

func TestStart_PropagatesObserveError(t *testing.T) {
	fake := &fakeSynchronizer{observeErr: storage.ErrClosed}
	c := New(fake)
	defer c.Dispose()

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestDispose_StopsUpdates(t *testing.T) {
	h := newHarness(t, []models.FeedRecord{{ID: "1"}}, true)
	require.NoError(t, h.ctrl.Start(context.Background()))

	// Wait for the initial snapshot so nothing else is in flight.
	items := h.ctrl.Items().Subscribe()
	<-items.C()
	items.Close()

	h.ctrl.Refresh()
	before := h.ctrl.State()

	h.ctrl.Dispose()
	h.ctrl.Dispose()

	close(h.release)
	require.Eventually(t, func() bool { return h.syncer.Stats().Succeeded == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	after := h.ctrl.State()
	assert.Equal(t, before, after)
	assert.True(t, after.IsLoading, "outcome delivered after dispose")

	// The shared work still reached the store.
	n, err := h.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h.ctrl.Refresh()
	assert.Equal(t, before, h.ctrl.State())
	assert.ErrorIs(t, h.ctrl.Start(context.Background()), ErrDisposed)

	_, ok := <-h.ctrl.States().Subscribe().C()
	assert.False(t, ok, "expected closed state stream after dispose")
}

func TestStart_ContextCancelDisposes(t *testing.T) {
	fake := &fakeSynchronizer{items: observe.NewBroadcasterWith([]models.FeedRecord{})}
	c := New(fake)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return errors.Is(c.Start(context.Background()), ErrDisposed)
	}, time.Second, 5*time.Millisecond)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{"empty plain", errors.New(""), FallbackMessage},
		{"refresh error", &syncer.RefreshError{Op: "x", Kind: syncer.FetchFailure, Err: errors.New("404")}, "404"},
		{"refresh error without cause message", &syncer.RefreshError{Op: "x", Kind: syncer.FetchFailure, Err: errors.New("")}, FallbackMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

type fakeSynchronizer struct {
	items      *observe.Broadcaster[[]models.FeedRecord]
	observes   atomic.Int32
	observeErr error
	refresh    func(ctx context.Context) error
}

func (f *fakeSynchronizer) Refresh(ctx context.Context) error {
	if f.refresh == nil {
		return nil
	}
	return f.refresh(ctx)
}

func (f *fakeSynchronizer) ObserveItems(context.Context) (*observe.Subscription[[]models.FeedRecord], error) {
	f.observes.Add(1)
	if f.observeErr != nil {
		return nil, f.observeErr
	}
	return f.items.Subscribe(), nil
}

// slowStore publishes a replace to observers, then holds the write until
// release is closed.
type slowStore struct {
	*storage.MemoryStore
	written chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowStore) ReplaceAll(ctx context.Context, records []models.FeedRecord) error {
	if err := s.MemoryStore.ReplaceAll(ctx, records); err != nil {
		return err
	}
	s.once.Do(func() { close(s.written) })
	<-s.release
	return nil
}

func TestRefresh_JoiningAfterWriteEndsWithData(t *testing.T) {
	store := &slowStore{
		MemoryStore: storage.NewMemoryStore(),
		written:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	defer store.Close()

	src := source.Func(func(context.Context) ([]models.FeedRecord, error) {
		return []models.FeedRecord{{ID: "1"}}, nil
	})
	s := syncer.New(store, src)
	c := New(s)
	defer c.Dispose()
	require.NoError(t, c.Start(context.Background()))

	other := make(chan error, 1)
	go func() { other <- s.Refresh(context.Background()) }()

	<-store.written
	waitForState(t, c, func(st FeedState) bool { return len(st.Items) == 1 })

	c.Refresh()
	require.Eventually(t, func() bool { return s.Stats().Calls == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	require.NoError(t, <-other)

	state := waitForState(t, c, func(st FeedState) bool { return !st.IsLoading })
	assert.Len(t, state.Items, 1)
	assert.False(t, state.IsEmpty)

	empty, ok := c.Empty().Value()
	assert.True(t, ok)
	assert.False(t, empty)
	assert.Equal(t, int64(1), s.Stats().Operations)
}

func TestRefreshAndWait_Success(t *testing.T) {
	h := newHarness(t, []models.FeedRecord{{ID: "1"}, {ID: "2"}}, false)
	require.NoError(t, h.ctrl.Start(context.Background()))

	require.NoError(t, h.ctrl.RefreshAndWait(context.Background()))

	state := h.ctrl.State()
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsEmpty)
	assert.Len(t, state.Items, 2)
	assert.Empty(t, state.LastError)
}

func TestRefreshAndWait_LoadingWhileRunning(t *testing.T) {
	h := newHarness(t, []models.FeedRecord{{ID: "1"}}, true)
	require.NoError(t, h.ctrl.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- h.ctrl.RefreshAndWait(context.Background()) }()

	waitForState(t, h.ctrl, func(s FeedState) bool { return s.IsLoading })
	close(h.release)

	require.NoError(t, <-done)
	assert.False(t, h.ctrl.State().IsLoading)
}

func TestRefreshAndWait_FailureUpdatesState(t *testing.T) {
	h := newHarness(t, nil, false)
	h.failWith(errors.New("bad gateway"))
	require.NoError(t, h.ctrl.Start(context.Background()))

	errs := h.ctrl.Errors().Subscribe()
	defer errs.Close()

	err := h.ctrl.RefreshAndWait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncer.ErrFetch))

	state := h.ctrl.State()
	assert.False(t, state.IsLoading)
	assert.Equal(t, "bad gateway", state.LastError)

	select {
	case ev := <-errs.C():
		msg, fresh := ev.Take()
		assert.True(t, fresh)
		assert.Equal(t, "bad gateway", msg)
	case <-time.After(time.Second):
		t.Fatal("no error event")
	}
}

func TestRefreshAndWait_ContextCanceled(t *testing.T) {
	h := newHarness(t, []models.FeedRecord{{ID: "1"}}, true)
	require.NoError(t, h.ctrl.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.RefreshAndWait(ctx) }()

	waitForState(t, h.ctrl, func(s FeedState) bool { return s.IsLoading })
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(h.release)
	state := waitForState(t, h.ctrl, func(s FeedState) bool { return !s.IsLoading })
	assert.Len(t, state.Items, 1)
}

func TestRefreshAndWait_AfterDispose(t *testing.T) {
	h := newHarness(t, nil, false)
	require.NoError(t, h.ctrl.Start(context.Background()))
	h.ctrl.Dispose()

	assert.ErrorIs(t, h.ctrl.RefreshAndWait(context.Background()), ErrDisposed)
	assert.Equal(t, int64(0), h.syncer.Stats().Calls)
}
