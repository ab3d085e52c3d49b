// ABOUTME: Latest-value broadcaster with per-subscriber conflating channels
// ABOUTME: New subscribers receive the current value first, then every later publish in order

package observe

import "sync"

// Broadcaster fans out values to subscribers and remembers the latest one.
// The owner publishes; everyone else subscribes. Each subscriber has a slot of
// one value, so a slow reader skips stale intermediates but never sees values
// out of publish order.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// Subscription is one subscriber's view of a Broadcaster.
type Subscription[T any] struct {
	ch   chan T
	b    *Broadcaster[T]
	once sync.Once
}

// NewBroadcaster creates an empty broadcaster with no current value.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[*Subscription[T]]struct{})}
}

// NewBroadcasterWith creates a broadcaster seeded with an initial value.
func NewBroadcasterWith[T any](initial T) *Broadcaster[T] {
	b := NewBroadcaster[T]()
	b.value = initial
	b.has = true
	return b
}

// Publish stores v as the current value and delivers it to every subscriber.
// Publishing after Close is a no-op.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.value = v
	b.has = true
	for s := range b.subs {
		s.offer(v)
	}
}

// Value returns the current value and whether one has been published.
func (b *Broadcaster[T]) Value() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.has
}

// Subscribe registers a new subscriber. If a value has been published the
// subscription's channel already holds it.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{ch: make(chan T, 1), b: b}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	if b.has {
		s.ch <- b.value
	}
	b.subs[s] = struct{}{}
	return s
}

// Subscribers returns the number of attached subscriptions.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches and closes every subscription. Later subscriptions are
// returned already closed.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

// offer replaces any undelivered value with v. Caller holds b.mu.
func (s *Subscription[T]) offer(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// C returns the channel values are delivered on. It is closed when the
// subscription or its broadcaster is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	delete(s.b.subs, s)
	s.once.Do(func() { close(s.ch) })
}
