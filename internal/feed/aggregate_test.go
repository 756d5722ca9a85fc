// ABOUTME: Tests for the aggregation engine using httptest feed servers
// ABOUTME: Covers failure skipping, ordering, limits, and label probing

package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxmill/feedgate/internal/store"
)

// fakeFeedStore serves a fixed feed list; only the read paths used by the
// aggregator are implemented.
type fakeFeedStore struct {
	feeds []*store.Feed
}

func (f *fakeFeedStore) CreateFeed(ctx context.Context, feed *store.Feed) error { return nil }
func (f *fakeFeedStore) GetFeed(ctx context.Context, id string) (*store.Feed, error) {
	return nil, store.ErrNotFound
}
func (f *fakeFeedStore) ListFeeds(ctx context.Context, owner, genreID string) ([]*store.Feed, error) {
	return f.feeds, nil
}
func (f *fakeFeedStore) ListEnabledFeeds(ctx context.Context, owner, genreID string) ([]*store.Feed, error) {
	return f.feeds, nil
}
func (f *fakeFeedStore) DeleteFeed(ctx context.Context, id string) error { return nil }
func (f *fakeFeedStore) DeleteFeedsByGenre(ctx context.Context, owner, genreID string) (int, error) {
	return 0, nil
}

func rssWithItems(title string, items ...string) string {
	doc := "<rss><channel><title>" + title + "</title>"
	for _, item := range items {
		doc += item
	}
	return doc + "</channel></rss>"
}

func rssItem(title, date string) string {
	return fmt.Sprintf("<item><title>%s</title><link>https://x.example/%s</link><pubDate>%s</pubDate></item>", title, title, date)
}

func feedServer(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAggregator(feeds []*store.Feed) *Aggregator {
	return NewAggregator(
		&fakeFeedStore{feeds: feeds},
		NewFetcher(5*time.Second),
		5*time.Second,
		2*time.Second,
		50,
		nil,
	)
}

func TestFetchByGenreMergesAndSorts(t *testing.T) {
	older := feedServer(t, rssWithItems("Older Feed",
		rssItem("old", "Mon, 02 Jan 2023 10:00:00 +0000"),
		rssItem("oldest", "Sun, 01 Jan 2023 10:00:00 +0000"),
	))
	newer := feedServer(t, rssWithItems("Newer Feed",
		rssItem("newest", "Wed, 04 Jan 2023 10:00:00 +0000"),
	))

	agg := newTestAggregator([]*store.Feed{
		{URL: older.URL},
		{URL: newer.URL},
	})

	articles, err := agg.FetchByGenre(context.Background(), "user1", "genre1", 0)
	require.NoError(t, err)
	require.Len(t, articles, 3)
	assert.Equal(t, "newest", articles[0].Title)
	assert.Equal(t, "old", articles[1].Title)
	assert.Equal(t, "oldest", articles[2].Title)
}

func TestFetchByGenreSkipsFailingFeed(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	healthy := feedServer(t, rssWithItems("Healthy",
		rssItem("fine", "Mon, 02 Jan 2023 10:00:00 +0000"),
	))

	agg := newTestAggregator([]*store.Feed{
		{URL: broken.URL},
		{URL: healthy.URL},
	})

	articles, err := agg.FetchByGenre(context.Background(), "user1", "genre1", 0)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "fine", articles[0].Title)
}

func TestFetchByGenreUndatedSortLast(t *testing.T) {
	srv := feedServer(t, rssWithItems("Mixed",
		"<item><title>undated</title></item>",
		rssItem("dated", "Mon, 02 Jan 2023 10:00:00 +0000"),
	))

	agg := newTestAggregator([]*store.Feed{{URL: srv.URL}})

	articles, err := agg.FetchByGenre(context.Background(), "user1", "genre1", 0)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "dated", articles[0].Title)
	assert.Equal(t, "undated", articles[1].Title)
}

func TestFetchByGenreAppliesLimit(t *testing.T) {
	srv := feedServer(t, rssWithItems("Big",
		rssItem("a", "Mon, 02 Jan 2023 10:00:00 +0000"),
		rssItem("b", "Mon, 02 Jan 2023 09:00:00 +0000"),
		rssItem("c", "Mon, 02 Jan 2023 08:00:00 +0000"),
	))

	agg := newTestAggregator([]*store.Feed{{URL: srv.URL}})

	articles, err := agg.FetchByGenre(context.Background(), "user1", "genre1", 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "a", articles[0].Title)
	assert.Equal(t, "b", articles[1].Title)
}

func TestFetchByURLPropagatesErrors(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(broken.Close)

	agg := newTestAggregator(nil)

	_, err := agg.FetchByURL(context.Background(), broken.URL, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchByURLKeepsDocumentOrder(t *testing.T) {
	srv := feedServer(t, rssWithItems("Doc Order",
		rssItem("first", "Mon, 02 Jan 2023 08:00:00 +0000"),
		rssItem("second", "Mon, 02 Jan 2023 10:00:00 +0000"),
	))

	agg := newTestAggregator(nil)

	articles, err := agg.FetchByURL(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "first", articles[0].Title)
	assert.Equal(t, "second", articles[1].Title)
}

func TestResolveLabel(t *testing.T) {
	srv := feedServer(t, rssWithItems("Nice Title"))
	agg := newTestAggregator(nil)
	assert.Equal(t, "Nice Title", agg.ResolveLabel(context.Background(), srv.URL))
}

func TestResolveLabelFallsBackToHost(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)

	agg := newTestAggregator(nil)
	label := agg.ResolveLabel(context.Background(), broken.URL)
	assert.Equal(t, broken.Listener.Addr().String(), label)
}
