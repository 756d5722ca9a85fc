// ABOUTME: HTTP fetcher for feed documents with bounded body reads
// ABOUTME: Shared by the aggregator and the feed.add label probe

package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	userAgent = "feedgate/1.0"

	// maxFeedBodyBytes caps how much of a feed document we will read.
	maxFeedBodyBytes = 8 << 20
)

// Fetcher retrieves raw feed documents over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch performs a GET for the feed document at rawURL. Any non-2xx status
// is an error; redirects follow Go's default policy.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading feed body: %w", err)
	}
	return string(body), nil
}
