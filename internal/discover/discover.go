// ABOUTME: Feed discovery for turning a site URL into a cacheable feed source URL
// ABOUTME: Tries the URL as a feed, then HTML alternate links, then common feed paths

package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/harper/feedsync/internal/fetch"
	"github.com/harper/feedsync/internal/parse"
	"golang.org/x/net/html"
)

// commonFeedPaths are probed when the page advertises no feed.
var commonFeedPaths = []string{
	"/feed.xml",
	"/feed",
	"/rss.xml",
	"/rss",
	"/atom.xml",
	"/atom",
	"/index.xml",
	"/feed.json",
	"/feed/rss",
	"/feeds/posts/default",
}

var (
	ErrNoFeedFound = errors.New("no RSS/Atom/JSON feed found at URL")
	ErrInvalidURL  = errors.New("invalid URL")
)

// Method records how a feed was found.
type Method string

const (
	MethodDirect Method = "direct"
	MethodLink   Method = "link"
	MethodProbe  Method = "probe"
)

// DiscoveredFeed is a feed URL that parsed successfully.
type DiscoveredFeed struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Entries int    `json:"entries"`
	Method  Method `json:"method"`
}

// Discoverer finds feeds using a shared fetcher.
type Discoverer struct {
	fetcher *fetch.Fetcher
}

// New creates a Discoverer. A nil fetcher uses defaults.
func New(fetcher *fetch.Fetcher) *Discoverer {
	if fetcher == nil {
		fetcher = fetch.New(0, "")
	}
	return &Discoverer{fetcher: fetcher}
}

// Discover finds a feed for inputURL with default fetch settings.
func Discover(ctx context.Context, inputURL string) (*DiscoveredFeed, error) {
	return New(nil).Discover(ctx, inputURL)
}

// Discover tries, in order: the URL itself as a feed, <link rel="alternate">
// candidates in the page, and common feed paths on the same host.
func (d *Discoverer) Discover(ctx context.Context, inputURL string) (*DiscoveredFeed, error) {
	base, err := url.Parse(inputURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host", ErrInvalidURL)
	}

	feed, body, err := d.tryFeed(ctx, inputURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if feed != nil {
		feed.Method = MethodDirect
		return feed, nil
	}

	for _, candidate := range extractFeedLinks(body, base) {
		found, _, err := d.tryFeed(ctx, candidate.URL)
		if err != nil || found == nil {
			continue
		}
		if found.Title == "" {
			found.Title = candidate.Title
		}
		found.Method = MethodLink
		return found, nil
	}

	root := &url.URL{Scheme: base.Scheme, Host: base.Host}
	for _, path := range commonFeedPaths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		found, _, err := d.tryFeed(ctx, root.String()+path)
		if err == nil && found != nil {
			found.Method = MethodProbe
			return found, nil
		}
	}

	return nil, ErrNoFeedFound
}

// tryFeed fetches feedURL and parses it. A body that is not a feed is
// returned with a nil feed and nil error so the caller can scan it as HTML.
func (d *Discoverer) tryFeed(ctx context.Context, feedURL string) (*DiscoveredFeed, []byte, error) {
	result, err := d.fetcher.Fetch(ctx, feedURL, nil, nil)
	if err != nil {
		return nil, nil, err
	}

	parsed, parseErr := parse.Parse(result.Body)
	if parseErr != nil {
		return nil, result.Body, nil //nolint:nilerr // not a feed is an expected outcome
	}

	return &DiscoveredFeed{
		URL:     feedURL,
		Title:   parsed.Title,
		Entries: len(parsed.Entries),
	}, result.Body, nil
}

// extractFeedLinks returns alternate feed links in document order.
func extractFeedLinks(body []byte, base *url.URL) []DiscoveredFeed {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var feeds []DiscoveredFeed
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "link" {
			var rel, linkType, href, title string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "rel":
					rel = strings.ToLower(attr.Val)
				case "type":
					linkType = attr.Val
				case "href":
					href = strings.TrimSpace(attr.Val)
				case "title":
					title = attr.Val
				}
			}
			if rel == "alternate" && isFeedContentType(linkType) && href != "" {
				if ref, err := url.Parse(href); err == nil {
					feeds = append(feeds, DiscoveredFeed{
						URL:   base.ResolveReference(ref).String(),
						Title: title,
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return feeds
}

func isFeedContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "rss") ||
		strings.Contains(contentType, "atom") ||
		strings.Contains(contentType, "xml") ||
		strings.Contains(contentType, "feed+json")
}
