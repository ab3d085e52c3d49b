// ABOUTME: Date range helpers for filtering cached records by publish time
// ABOUTME: Parses since-expressions like "today", "week", "36h", "3d", or ISO dates

package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StartOfDay returns midnight of the day containing now, in now's location.
func StartOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// StartOfWeek returns midnight of the most recent Sunday.
func StartOfWeek(now time.Time) time.Time {
	today := StartOfDay(now)
	return today.AddDate(0, 0, -int(today.Weekday()))
}

// StartOfMonth returns midnight of the first day of now's month.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// StartOfToday returns midnight of the current day in local time.
func StartOfToday() time.Time {
	return StartOfDay(time.Now())
}

// ParsePeriod converts a period name to the start of that period, relative
// to now. Supported: "today", "yesterday", "week", "month".
func ParsePeriod(now time.Time, period string) (time.Time, bool) {
	switch strings.ToLower(period) {
	case "today":
		return StartOfDay(now), true
	case "yesterday":
		return StartOfDay(now).AddDate(0, 0, -1), true
	case "week":
		return StartOfWeek(now), true
	case "month":
		return StartOfMonth(now), true
	default:
		return time.Time{}, false
	}
}

// ParseSince resolves a since-expression to a cutoff time. It accepts a
// period name, a Go duration ("36h"), a day count ("3d"), YYYY-MM-DD, or
// RFC3339.
func ParseSince(now time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, ok := ParsePeriod(now, s); ok {
		return t, nil
	}

	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return now.AddDate(0, 0, -n), nil
		}
	}

	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("cannot parse %q: use today, yesterday, week, month, 36h, 3d, or YYYY-MM-DD", s)
}

// Ago renders the distance from t to now in a short form like "5m ago".
func Ago(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 0:
		return "in the future"
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
