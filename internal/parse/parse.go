// ABOUTME: RSS/Atom feed parsing using gofeed library
// ABOUTME: Normalizes gofeed items and maps them onto cacheable FeedRecords

package parse

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/feedsync/internal/content"
	"github.com/harper/feedsync/internal/models"
	"github.com/mmcdole/gofeed"
)

// ParsedFeed represents a normalized feed structure
type ParsedFeed struct {
	Title   string
	Entries []ParsedEntry
}

// ParsedEntry represents a normalized feed entry
type ParsedEntry struct {
	GUID        string
	Title       string
	Link        string
	Author      string
	ImageURL    string
	PublishedAt *time.Time
	Content     string
	Categories  []string
}

// premiumCategories mark entries as premium when present in an item's categories.
var premiumCategories = map[string]bool{
	"premium":    true,
	"paid":       true,
	"subscriber": true,
}

// Parse parses RSS or Atom feed data and returns a normalized ParsedFeed
func Parse(data []byte) (*ParsedFeed, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(data))
	if err != nil {
		return nil, err
	}

	parsed := &ParsedFeed{
		Title:   feed.Title,
		Entries: make([]ParsedEntry, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		entry := ParsedEntry{
			GUID:       item.GUID,
			Title:      item.Title,
			Link:       item.Link,
			Categories: item.Categories,
		}

		if entry.GUID == "" {
			entry.GUID = item.Link
		}

		if item.Author != nil {
			entry.Author = item.Author.Name
		}

		if item.PublishedParsed != nil {
			entry.PublishedAt = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			entry.PublishedAt = item.UpdatedParsed
		}

		if item.Content != "" {
			entry.Content = item.Content
		} else {
			entry.Content = item.Description
		}
		entry.Content = strings.TrimSpace(entry.Content)

		entry.ImageURL = imageFor(item, entry.Content)

		parsed.Entries = append(parsed.Entries, entry)
	}

	return parsed, nil
}

// imageFor picks a thumbnail: item image, then image enclosure, then first inline <img>.
func imageFor(item *gofeed.Item, body string) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return content.FirstImage(body)
}

// Records maps parsed entries to FeedRecords in feed order.
// Entries without a GUID or link get a stable name-based UUID.
func (f *ParsedFeed) Records() []models.FeedRecord {
	records := make([]models.FeedRecord, 0, len(f.Entries))
	for _, e := range f.Entries {
		records = append(records, models.FeedRecord{
			ID:           recordID(e),
			Title:        e.Title,
			Link:         e.Link,
			ThumbnailURL: e.ImageURL,
			Summary:      e.Content,
			Author:       e.Author,
			PublishedAt:  e.PublishedAt,
			Premium:      isPremium(e.Categories),
		})
	}
	return records
}

func recordID(e ParsedEntry) string {
	if e.GUID != "" {
		return e.GUID
	}
	name := e.Title
	if e.PublishedAt != nil {
		name += "|" + e.PublishedAt.UTC().Format(time.RFC3339)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func isPremium(categories []string) bool {
	for _, c := range categories {
		if premiumCategories[strings.ToLower(strings.TrimSpace(c))] {
			return true
		}
	}
	return false
}
