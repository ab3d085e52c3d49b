// ABOUTME: Observable state controller deriving items, loading, empty, and error signals
// ABOUTME: All transitions after the synchronous loading set run on one observer goroutine

package feedstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/observe"
	"github.com/harper/feedsync/internal/syncer"
)

// ErrDisposed is returned by Start after Dispose.
var ErrDisposed = errors.New("controller disposed")

// Controller turns a Synchronizer into a set of observable signals.
//
// Refresh flips IsLoading and IsEmpty on the calling goroutine. Every later
// transition (item snapshots and refresh outcomes) is applied by a single
// observer goroutine, so subscribers never see reordered updates. Items
// follow the item stream; each outcome re-derives IsEmpty from them.
type Controller struct {
	sync   Synchronizer
	logger *slog.Logger

	items   *observe.Broadcaster[[]models.FeedRecord]
	loading *observe.Broadcaster[bool]
	empty   *observe.Broadcaster[bool]
	errs    *observe.Broadcaster[*observe.Event[string]]
	states  *observe.Broadcaster[FeedState]

	mu        sync.Mutex
	state     FeedState
	haveItems bool
	pending   int
	started   bool
	disposed  bool
	sub       *observe.Subscription[[]models.FeedRecord]

	outcomes    chan outcome
	done        chan struct{}
	life        context.Context
	cancel      context.CancelFunc
	disposeOnce sync.Once
}

// outcome is a refresh result on its way to the observer goroutine. applied
// is closed once the result has been reflected in the state, if non-nil.
type outcome struct {
	err     error
	applied chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a controller. A nil synchronizer panics with
// *syncer.ConfigurationError.
func New(s Synchronizer, opts ...Option) *Controller {
	if s == nil {
		panic(&syncer.ConfigurationError{Component: "feedstate", Reason: "synchronizer is nil"})
	}

	life, cancel := context.WithCancel(context.Background())
	c := &Controller{
		sync:     s,
		logger:   slog.Default(),
		items:    observe.NewBroadcaster[[]models.FeedRecord](),
		loading:  observe.NewBroadcasterWith(false),
		empty:    observe.NewBroadcaster[bool](),
		errs:     observe.NewBroadcaster[*observe.Event[string]](),
		states:   observe.NewBroadcasterWith(FeedState{Items: []models.FeedRecord{}}),
		state:    FeedState{Items: []models.FeedRecord{}},
		outcomes: make(chan outcome),
		done:     make(chan struct{}),
		life:     life,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the item stream and launches the observer goroutine.
// Calling it again is a no-op. Refresh outcomes requested before Start are
// applied once it runs. When ctx ends the controller is disposed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	sub, err := c.sync.ObserveItems(ctx)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("observe items: %w", err)
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		sub.Close()
		return ErrDisposed
	}
	c.sub = sub
	c.mu.Unlock()

	go c.observe(ctx, sub)
	return nil
}

// Refresh marks the controller loading and asks the synchronizer to refresh.
// It returns immediately; the outcome arrives on the observer goroutine.
func (c *Controller) Refresh() {
	if !c.begin() {
		c.logger.Debug("refresh ignored after dispose")
		return
	}
	go func() {
		c.deliver(outcome{err: c.sync.Refresh(c.life)})
	}()
}

// RefreshAndWait behaves like Refresh but blocks until the outcome has been
// applied to the state, then returns it. When ctx ends first it returns
// ctx.Err(); the refresh still completes and updates the state. The
// controller must be started for the call to finish before ctx ends.
func (c *Controller) RefreshAndWait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.begin() {
		return ErrDisposed
	}

	applied := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		err := c.sync.Refresh(c.life)
		result <- err
		c.deliver(outcome{err: err, applied: applied})
	}()

	select {
	case <-applied:
		return <-result
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrDisposed
	}
}

// begin performs the synchronous loading-start transition. It reports false
// after Dispose.
func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	c.pending++
	c.state.IsLoading = true
	c.state.IsEmpty = true
	c.loading.Publish(true)
	c.empty.Publish(true)
	c.publishState()
	return true
}

func (c *Controller) deliver(o outcome) {
	select {
	case c.outcomes <- o:
	case <-c.done:
	}
}

// Dispose releases the item subscription and closes every signal. In-flight
// refreshes keep running for other callers but their outcomes are dropped
// here. Safe to call more than once.
func (c *Controller) Dispose() {
	c.disposeOnce.Do(func() {
		c.mu.Lock()
		c.disposed = true
		sub := c.sub
		c.sub = nil
		c.mu.Unlock()

		close(c.done)
		c.cancel()
		if sub != nil {
			sub.Close()
		}

		c.items.Close()
		c.loading.Close()
		c.empty.Close()
		c.errs.Close()
		c.states.Close()
	})
}

// State returns a snapshot of the current state.
func (c *Controller) State() FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Items is the signal carrying the cached record list.
func (c *Controller) Items() *observe.Broadcaster[[]models.FeedRecord] { return c.items }

// Loading is the signal that is true while any refresh is pending.
func (c *Controller) Loading() *observe.Broadcaster[bool] { return c.loading }

// Empty is the signal that is true when there is nothing to show.
func (c *Controller) Empty() *observe.Broadcaster[bool] { return c.empty }

// Errors is the signal of one-shot failure messages. A late subscriber may
// receive the latest event, but Take only succeeds for the first consumer.
func (c *Controller) Errors() *observe.Broadcaster[*observe.Event[string]] { return c.errs }

// States streams whole snapshots after every transition.
func (c *Controller) States() *observe.Broadcaster[FeedState] { return c.states }

func (c *Controller) observe(ctx context.Context, sub *observe.Subscription[[]models.FeedRecord]) {
	items := sub.C()
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			c.Dispose()
			return
		case records, ok := <-items:
			if !ok {
				items = nil
				continue
			}
			c.applyItems(records)
		case o := <-c.outcomes:
			// Apply the snapshot written by this refresh before its outcome.
			select {
			case records, ok := <-items:
				if ok {
					c.applyItems(records)
				} else {
					items = nil
				}
			default:
			}
			c.applyOutcome(o.err)
			if o.applied != nil {
				close(o.applied)
			}
		}
	}
}

func (c *Controller) applyItems(records []models.FeedRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	c.haveItems = true
	c.state.Items = models.Clone(records)
	c.state.IsEmpty = len(records) == 0
	c.items.Publish(models.Clone(records))
	c.empty.Publish(c.state.IsEmpty)
	c.publishState()
}

func (c *Controller) applyOutcome(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	if c.pending > 0 {
		c.pending--
	}
	if c.pending == 0 {
		c.state.IsLoading = false
		c.loading.Publish(false)
	}

	if err == nil {
		c.state.LastError = ""
	} else {
		msg := Message(err)
		c.logger.Warn("refresh failed", "error", msg)
		c.state.LastError = msg
		c.errs.Publish(observe.NewEvent(msg))
	}

	// The item stream may have delivered its snapshot before this refresh
	// began, so undo the loading-start empty flag from the known items.
	if c.haveItems && c.state.IsEmpty != (len(c.state.Items) == 0) {
		c.state.IsEmpty = len(c.state.Items) == 0
		c.empty.Publish(c.state.IsEmpty)
	}
	c.publishState()
}

// publishState emits the current snapshot. Caller holds c.mu.
func (c *Controller) publishState() {
	c.states.Publish(c.state.clone())
}

// Message returns the display text for a refresh failure.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rerr *syncer.RefreshError
	if errors.As(err, &rerr) {
		if msg := rerr.Message(); msg != "" {
			return msg
		}
		return FallbackMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}
