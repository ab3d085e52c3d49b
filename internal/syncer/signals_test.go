// ABOUTME: Tests for refresh signal and field key names
// ABOUTME: Signal names are a public contract for hook consumers

package syncer

import (
	"testing"
	"time"
)

func TestSignalNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
	}{
		{"feedsync.refresh.started", RefreshStarted.Name()},
		{"feedsync.refresh.shared", RefreshShared.Name()},
		{"feedsync.refresh.succeeded", RefreshSucceeded.Name()},
		{"feedsync.refresh.failed", RefreshFailed.Name()},
	}

	for _, tt := range tests {
		if tt.got != tt.name {
			t.Errorf("expected name %q, got %q", tt.name, tt.got)
		}
	}
}

func TestKeyNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
	}{
		{"operation", KeyOperation.Field("op").Key().Name()},
		{"record_count", KeyRecordCount.Field(3).Key().Name()},
		{"failure_kind", KeyFailureKind.Field("fetch").Key().Name()},
		{"error", KeyError.Field("boom").Key().Name()},
		{"duration", KeyDuration.Field(time.Second).Key().Name()},
	}

	for _, tt := range tests {
		if tt.got != tt.name {
			t.Errorf("expected key %q, got %q", tt.name, tt.got)
		}
	}
}

func TestKindString(t *testing.T) {
	if FetchFailure.String() != "fetch" {
		t.Errorf("expected 'fetch', got %q", FetchFailure.String())
	}
	if StoreWriteFailure.String() != "store_write" {
		t.Errorf("expected 'store_write', got %q", StoreWriteFailure.String())
	}
	if Kind(0).String() != "unknown" {
		t.Errorf("expected 'unknown', got %q", Kind(0).String())
	}
}
