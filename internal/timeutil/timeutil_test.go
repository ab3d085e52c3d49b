// ABOUTME: Tests for date range helpers and since-expression parsing
// ABOUTME: Uses a fixed reference time so results are deterministic

package timeutil

import (
	"testing"
	"time"
)

// ref is a Wednesday afternoon.
var ref = time.Date(2025, time.March, 12, 15, 30, 0, 0, time.UTC)

func TestStartOfDay(t *testing.T) {
	got := StartOfDay(ref)
	want := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestStartOfToday(t *testing.T) {
	result := StartOfToday()
	if result.Hour() != 0 || result.Minute() != 0 || result.Second() != 0 {
		t.Errorf("StartOfToday() should be midnight, got %v", result)
	}
}

func TestStartOfWeek(t *testing.T) {
	got := StartOfWeek(ref)
	if got.Weekday() != time.Sunday {
		t.Errorf("expected Sunday, got %v", got.Weekday())
	}
	want := time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	sunday := time.Date(2025, time.March, 9, 8, 0, 0, 0, time.UTC)
	if !StartOfWeek(sunday).Equal(want) {
		t.Errorf("expected Sunday to be its own week start, got %v", StartOfWeek(sunday))
	}
}

func TestStartOfMonth(t *testing.T) {
	got := StartOfMonth(ref)
	want := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		period string
		want   time.Time
		valid  bool
	}{
		{"today", time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), true},
		{"Yesterday", time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), true},
		{"week", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), true},
		{"month", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"invalid", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tc := range tests {
		got, ok := ParsePeriod(ref, tc.period)
		if ok != tc.valid {
			t.Errorf("ParsePeriod(%q) valid = %v, expected %v", tc.period, ok, tc.valid)
			continue
		}
		if tc.valid && !got.Equal(tc.want) {
			t.Errorf("ParsePeriod(%q) = %v, expected %v", tc.period, got, tc.want)
		}
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"today", time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), false},
		{" week ", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), false},
		{"36h", ref.Add(-36 * time.Hour), false},
		{"90m", ref.Add(-90 * time.Minute), false},
		{"3d", time.Date(2025, 3, 9, 15, 30, 0, 0, time.UTC), false},
		{"2025-01-02", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"2025-01-02T10:00:00Z", time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), false},
		{"-5h", time.Time{}, true},
		{"xd", time.Time{}, true},
		{"fortnight", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tc := range tests {
		got, err := ParseSince(ref, tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSince(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSince(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseSince(%q) = %v, expected %v", tc.in, got, tc.want)
		}
	}
}

func TestAgo(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{ref.Add(time.Hour), "in the future"},
		{ref.Add(-10 * time.Second), "just now"},
		{ref.Add(-5 * time.Minute), "5m ago"},
		{ref.Add(-3 * time.Hour), "3h ago"},
		{ref.Add(-50 * time.Hour), "2d ago"},
	}

	for _, tc := range tests {
		if got := Ago(ref, tc.t); got != tc.want {
			t.Errorf("Ago(%v): expected %q, got %q", tc.t, tc.want, got)
		}
	}
}
