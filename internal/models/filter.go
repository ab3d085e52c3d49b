// ABOUTME: Read-side filtering for cached record lists
// ABOUTME: Shared by the CLI, HTTP API, and MCP tools so every surface filters the same way

package models

import "time"

// Filter narrows a record list. Zero values disable each condition.
type Filter struct {
	Since       *time.Time
	UnseenOnly  bool
	PremiumOnly bool
	Limit       int
}

// Apply returns the records that pass the filter, preserving order.
// Records without a publish time never match a Since condition.
func (f Filter) Apply(records []FeedRecord) []FeedRecord {
	out := make([]FeedRecord, 0, len(records))
	for _, r := range records {
		if f.UnseenOnly && r.Seen {
			continue
		}
		if f.PremiumOnly && !r.Premium {
			continue
		}
		if f.Since != nil && (r.PublishedAt == nil || r.PublishedAt.Before(*f.Since)) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Describe returns the active conditions for echoing back to callers.
func (f Filter) Describe() map[string]any {
	out := make(map[string]any)
	if f.Since != nil {
		out["since"] = *f.Since
	}
	if f.UnseenOnly {
		out["unseen_only"] = true
	}
	if f.PremiumOnly {
		out["premium_only"] = true
	}
	if f.Limit > 0 {
		out["limit"] = f.Limit
	}
	return out
}
