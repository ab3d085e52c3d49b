// ABOUTME: HTTP fetcher with support for conditional requests using ETag and Last-Modified headers.
// ABOUTME: Reports 304 Not Modified distinctly, with SSRF protection and a response size limit.

package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultUserAgent identifies feedsync to feed servers.
const DefaultUserAgent = "feedsync/1.0 (feed cache)"

// Result contains the response from an HTTP fetch operation.
type Result struct {
	Body         []byte
	ETag         string
	LastModified string
	NotModified  bool
}

// StatusError is returned for responses other than 200 and 304.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Fetcher performs conditional GETs with a shared client.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New creates a Fetcher. Zero values select a 30s timeout and the default user agent.
func New(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

var defaultFetcher = New(0, "")

// isPrivateIP checks if an IP address is in a private range (excluding loopback for tests).
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// Fetch retrieves a URL using the default fetcher.
func Fetch(ctx context.Context, urlStr string, etag, lastModified *string) (*Result, error) {
	return defaultFetcher.Fetch(ctx, urlStr, etag, lastModified)
}

// Fetch retrieves a URL with optional conditional request headers.
// If etag is provided, sets If-None-Match header.
// If lastModified is provided, sets If-Modified-Since header.
// Returns NotModified=true for 304 responses and *StatusError for other non-200 codes.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string, etag, lastModified *string) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL: unsupported scheme %q", parsedURL.Scheme)
	}

	if ips, err := net.DefaultResolver.LookupIP(ctx, "ip", parsedURL.Hostname()); err == nil {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return nil, fmt.Errorf("access to private IP ranges is not allowed")
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	if etag != nil && *etag != "" {
		req.Header.Set("If-None-Match", *etag)
	}

	if lastModified != nil && *lastModified != "" {
		req.Header.Set("If-Modified-Since", *lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{NotModified: true}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response too large (exceeds %d bytes)", MaxResponseSize)
	}

	return &Result{
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
