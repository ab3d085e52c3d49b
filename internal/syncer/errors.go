// ABOUTME: Error taxonomy for refresh operations
// ABOUTME: Distinguishes fetch failures from store write failures; config errors panic at construction

package syncer

import (
	"errors"
	"fmt"
)

// Kind classifies a refresh failure.
type Kind int

const (
	// FetchFailure covers transport errors, bad status codes, undecodable
	// payloads, and invalid records.
	FetchFailure Kind = iota + 1
	// StoreWriteFailure means the local store rejected the replace.
	StoreWriteFailure
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case FetchFailure:
		return "fetch"
	case StoreWriteFailure:
		return "store_write"
	default:
		return "unknown"
	}
}

var (
	// ErrFetch matches any RefreshError of kind FetchFailure.
	ErrFetch = errors.New("fetch failed")
	// ErrStoreWrite matches any RefreshError of kind StoreWriteFailure.
	ErrStoreWrite = errors.New("store write failed")
)

// RefreshError is the single failure outcome of a refresh operation.
type RefreshError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s: %s: %v", e.Op, e.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *RefreshError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *RefreshError) sentinel() error {
	if e.Kind == StoreWriteFailure {
		return ErrStoreWrite
	}
	return ErrFetch
}

// Message returns a short human-readable description for display.
func (e *RefreshError) Message() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return e.Err.Error()
}

// ConfigurationError reports a missing or invalid dependency. It is raised
// with panic during construction and is never returned as an outcome.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s misconfigured: %s", e.Component, e.Reason)
}
