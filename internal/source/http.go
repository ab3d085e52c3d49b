// ABOUTME: HTTP feed source fetching RSS/Atom with conditional GET
// ABOUTME: Replays the last parsed record set when the server answers 304 Not Modified

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/parse"
)

// ErrNotModified is returned if the server answers 304 before any body was cached.
var ErrNotModified = errors.New("feed not modified and nothing cached")

// HTTPSource fetches and parses a feed URL.
type HTTPSource struct {
	url     string
	fetcher *fetch.Fetcher

	mu           sync.Mutex
	etag         string
	lastModified string
	last         []models.FeedRecord
	title        string
}

// NewHTTPSource creates a source for feedURL. A nil fetcher uses defaults.
func NewHTTPSource(feedURL string, fetcher *fetch.Fetcher) *HTTPSource {
	if fetcher == nil {
		fetcher = fetch.New(0, "")
	}
	return &HTTPSource{url: feedURL, fetcher: fetcher}
}

// URL returns the feed URL.
func (s *HTTPSource) URL() string {
	return s.url
}

// Title returns the feed title from the last successful parse.
func (s *HTTPSource) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// FetchFeed performs a conditional GET and returns the complete record set.
func (s *HTTPSource) FetchFeed(ctx context.Context) ([]models.FeedRecord, error) {
	s.mu.Lock()
	var etag, lastModified *string
	if s.last != nil {
		e, lm := s.etag, s.lastModified
		etag, lastModified = &e, &lm
	}
	s.mu.Unlock()

	result, err := s.fetcher.Fetch(ctx, s.url, etag, lastModified)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}

	if result.NotModified {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.last == nil {
			return nil, ErrNotModified
		}
		return models.Clone(s.last), nil
	}

	parsed, err := parse.Parse(result.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.url, err)
	}

	records := parsed.Records()
	if err := models.ValidateSet(records); err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.etag = result.ETag
	s.lastModified = result.LastModified
	s.last = models.Clone(records)
	s.title = parsed.Title
	s.mu.Unlock()

	return records, nil
}
