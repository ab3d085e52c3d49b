// ABOUTME: Capitan signals and field keys emitted over a refresh lifecycle
// ABOUTME: Hook these to audit or trace refresh operations without coupling to the syncer

package syncer

import "github.com/zoobzio/capitan"

// Refresh lifecycle signals.
var (
	// RefreshStarted is emitted when a new refresh operation begins fetching.
	RefreshStarted = capitan.NewSignal(
		"feedsync.refresh.started",
		"Refresh operation started",
	)

	// RefreshShared is emitted for each caller whose outcome came from an
	// operation shared with at least one other caller.
	RefreshShared = capitan.NewSignal(
		"feedsync.refresh.shared",
		"Refresh outcome shared between callers",
	)

	// RefreshSucceeded is emitted after the store has been replaced.
	RefreshSucceeded = capitan.NewSignal(
		"feedsync.refresh.succeeded",
		"Refresh operation replaced the cache",
	)

	// RefreshFailed is emitted when the fetch or the store write fails.
	RefreshFailed = capitan.NewSignal(
		"feedsync.refresh.failed",
		"Refresh operation failed",
	)
)

// Signal field keys.
var (
	// KeyOperation is the refresh operation id.
	KeyOperation = capitan.NewStringKey("operation")

	// KeyRecordCount is the number of records written.
	KeyRecordCount = capitan.NewIntKey("record_count")

	// KeyFailureKind is the failure classification.
	KeyFailureKind = capitan.NewStringKey("failure_kind")

	// KeyError is the error message.
	KeyError = capitan.NewStringKey("error")

	// KeyDuration is how long the operation took.
	KeyDuration = capitan.NewDurationKey("duration")
)
