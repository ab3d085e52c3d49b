// ABOUTME: One-shot event wrapper for values that must be handled at most once
// ABOUTME: Re-delivering the same Event to a new observer does not re-fire its content

package observe

import "sync/atomic"

// Event wraps a value that should be consumed by at most one observer.
type Event[T any] struct {
	content T
	handled atomic.Bool
}

// NewEvent wraps content in an unconsumed event.
func NewEvent[T any](content T) *Event[T] {
	return &Event[T]{content: content}
}

// Take returns the content and true the first time it is called,
// and the zero value and false on every later call.
func (e *Event[T]) Take() (T, bool) {
	if e == nil || !e.handled.CompareAndSwap(false, true) {
		var zero T
		return zero, false
	}
	return e.content, true
}

// Peek returns the content without consuming it.
func (e *Event[T]) Peek() T {
	return e.content
}

// Handled reports whether the event has been consumed.
func (e *Event[T]) Handled() bool {
	return e.handled.Load()
}
