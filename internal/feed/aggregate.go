// ABOUTME: Aggregation engine merging articles across a genre's feeds
// ABOUTME: Fetches concurrently, skips failing feeds, sorts newest-first

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fluxmill/feedgate/internal/store"
)

// Aggregator fetches and merges articles for a user's genres.
type Aggregator struct {
	feeds        store.FeedStore
	fetcher      *Fetcher
	logger       *slog.Logger
	fetchTimeout time.Duration
	labelTimeout time.Duration
	defaultLimit int
}

// NewAggregator wires an aggregator over the feed registry.
func NewAggregator(feeds store.FeedStore, fetcher *Fetcher, fetchTimeout, labelTimeout time.Duration, defaultLimit int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "feed")
	return &Aggregator{
		feeds:        feeds,
		fetcher:      fetcher,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		labelTimeout: labelTimeout,
		defaultLimit: defaultLimit,
	}
}

// FetchByGenre fetches every enabled feed registered under the genre,
// concurrently, and returns the merged article list sorted by publication
// date descending. A feed that fails to fetch or parse is skipped; it never
// fails the aggregate. Articles without a parseable date sort last.
func (a *Aggregator) FetchByGenre(ctx context.Context, owner, genreID string, limit int) ([]Article, error) {
	feeds, err := a.feeds.ListEnabledFeeds(ctx, owner, genreID)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}

	// Results keep feed registration order so equal-timestamp articles
	// stay deterministic regardless of fetch completion order.
	results := make([][]Article, len(feeds))
	var wg sync.WaitGroup
	for i, f := range feeds {
		wg.Add(1)
		go func(i int, f *store.Feed) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
			defer cancel()

			doc, err := a.fetcher.Fetch(fetchCtx, f.URL)
			if err != nil {
				a.logger.Warn("skipping feed", "url", f.URL, "error", err)
				return
			}
			results[i] = Parse(doc, f.URL)
		}(i, f)
	}
	wg.Wait()

	var merged []Article
	for _, articles := range results {
		merged = append(merged, articles...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].publishedAt.After(merged[j].publishedAt)
	})
	return a.clampLimit(merged, limit), nil
}

// FetchByURL fetches and parses a single feed without aggregation. Unlike
// FetchByGenre, a fetch failure here is the caller's error. Articles keep
// document order.
func (a *Aggregator) FetchByURL(ctx context.Context, rawURL string, limit int) ([]Article, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	doc, err := a.fetcher.Fetch(fetchCtx, rawURL)
	if err != nil {
		return nil, err
	}
	return a.clampLimit(Parse(doc, rawURL), limit), nil
}

// ResolveLabel probes a feed URL for its document title, for use as a
// human-readable label at registration time. Any failure falls back to the
// URL's host so registration never blocks on a slow or broken feed.
func (a *Aggregator) ResolveLabel(ctx context.Context, rawURL string) string {
	fetchCtx, cancel := context.WithTimeout(ctx, a.labelTimeout)
	defer cancel()

	doc, err := a.fetcher.Fetch(fetchCtx, rawURL)
	if err != nil {
		a.logger.Debug("label probe failed", "url", rawURL, "error", err)
		return HostFromURL(rawURL)
	}
	if title := ParseTitle(doc); title != "" {
		return title
	}
	return HostFromURL(rawURL)
}

func (a *Aggregator) clampLimit(articles []Article, limit int) []Article {
	if articles == nil {
		articles = []Article{}
	}
	if limit <= 0 {
		limit = a.defaultLimit
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles
}
