// ABOUTME: FeedRecord model representing a single cached feed item
// ABOUTME: Immutable value type with validator tags and record-set integrity checks

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance.
var validate = validator.New()

// ErrDuplicateID is returned when a record set carries the same ID twice.
var ErrDuplicateID = errors.New("duplicate record id")

// FeedRecord represents one item of the remote feed as it is cached locally.
// Records are passed by value; use the With* helpers to derive a changed copy.
type FeedRecord struct {
	ID           string     `json:"id" yaml:"id" validate:"required"`
	Title        string     `json:"title" yaml:"title"`
	Link         string     `json:"link,omitempty" yaml:"link,omitempty" validate:"omitempty,url"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty" yaml:"thumbnail_url,omitempty" validate:"omitempty,url"`
	Summary      string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	Author       string     `json:"author,omitempty" yaml:"author,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	Premium      bool       `json:"premium" yaml:"premium"`
	Seen         bool       `json:"seen" yaml:"seen"`
}

// Validate checks the record's struct tags.
func (r FeedRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("record %q: %w", r.ID, err)
	}
	return nil
}

// DisplayTitle returns the title, or a placeholder for untitled records.
func (r FeedRecord) DisplayTitle() string {
	if r.Title == "" {
		return "Untitled"
	}
	return r.Title
}

// ValidateSet validates every record and rejects duplicate IDs.
// A single bad record fails the whole set.
func ValidateSet(records []FeedRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// Clone returns a copy of the slice so callers cannot alias stored state.
func Clone(records []FeedRecord) []FeedRecord {
	if records == nil {
		return []FeedRecord{}
	}
	out := make([]FeedRecord, len(records))
	copy(out, records)
	return out
}
