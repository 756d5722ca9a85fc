package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStore_CreateGenre(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	genre := &Genre{Owner: "user-1", Name: "Tech"}
	err := store.CreateGenre(ctx, genre)
	require.NoError(t, err)
	require.NotEmpty(t, genre.ID)

	retrieved, err := store.GetGenre(ctx, genre.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", retrieved.Owner)
	assert.Equal(t, "Tech", retrieved.Name)
	assert.False(t, retrieved.CreatedAt.IsZero())
}

func TestStore_CreateGenre_DuplicateName(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateGenre(ctx, &Genre{Owner: "user-1", Name: "Tech"}))

	err := store.CreateGenre(ctx, &Genre{Owner: "user-1", Name: "Tech"})
	assert.ErrorIs(t, err, ErrDuplicateGenre)

	// Same name under a different owner is fine
	err = store.CreateGenre(ctx, &Genre{Owner: "user-2", Name: "Tech"})
	assert.NoError(t, err)
}

func TestStore_ListGenres_Order(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateGenre(ctx, &Genre{Owner: "user-1", Name: "Zeta", SortOrder: 0}))
	require.NoError(t, store.CreateGenre(ctx, &Genre{Owner: "user-1", Name: "Alpha", SortOrder: 0}))
	require.NoError(t, store.CreateGenre(ctx, &Genre{Owner: "user-1", Name: "First", SortOrder: -1}))
	require.NoError(t, store.CreateGenre(ctx, &Genre{Owner: "user-2", Name: "Other"}))

	genres, err := store.ListGenres(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, genres, 3)
	assert.Equal(t, "First", genres[0].Name)
	assert.Equal(t, "Alpha", genres[1].Name)
	assert.Equal(t, "Zeta", genres[2].Name)
}

func TestStore_UpdateGenre(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	genre := &Genre{Owner: "user-1", Name: "Old"}
	require.NoError(t, store.CreateGenre(ctx, genre))

	genre.Name = "New"
	require.NoError(t, store.UpdateGenre(ctx, genre))

	retrieved, err := store.GetGenre(ctx, genre.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", retrieved.Name)
}

func TestStore_UpdateGenre_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateGenre(context.Background(), &Genre{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteGenre(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	genre := &Genre{Owner: "user-1", Name: "Tech"}
	require.NoError(t, store.CreateGenre(ctx, genre))
	require.NoError(t, store.DeleteGenre(ctx, genre.ID))

	_, err := store.GetGenre(ctx, genre.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteGenre(ctx, genre.ID), ErrNotFound)
}

func TestStore_CreateFeed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	genre := &Genre{Owner: "user-1", Name: "Tech"}
	require.NoError(t, store.CreateGenre(ctx, genre))

	feed := &Feed{Owner: "user-1", GenreID: genre.ID, URL: "https://example.com/rss", Label: "Example"}
	require.NoError(t, store.CreateFeed(ctx, feed))
	require.NotEmpty(t, feed.ID)

	retrieved, err := store.GetFeed(ctx, feed.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/rss", retrieved.URL)
	assert.Equal(t, "Example", retrieved.Label)
	assert.False(t, retrieved.Disabled)
}

func TestStore_CreateFeed_DuplicateURL(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	genre := &Genre{Owner: "user-1", Name: "Tech"}
	require.NoError(t, store.CreateGenre(ctx, genre))

	feed := &Feed{Owner: "user-1", GenreID: genre.ID, URL: "https://example.com/rss"}
	require.NoError(t, store.CreateFeed(ctx, feed))

	dup := &Feed{Owner: "user-1", GenreID: genre.ID, URL: "https://example.com/rss"}
	assert.ErrorIs(t, store.CreateFeed(ctx, dup), ErrDuplicateFeed)
}

func TestStore_ListEnabledFeeds_SkipsDisabled(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	genre := &Genre{Owner: "user-1", Name: "Tech"}
	require.NoError(t, store.CreateGenre(ctx, genre))

	require.NoError(t, store.CreateFeed(ctx, &Feed{
		Owner: "user-1", GenreID: genre.ID, URL: "https://a.example/rss", Label: "A",
	}))
	require.NoError(t, store.CreateFeed(ctx, &Feed{
		Owner: "user-1", GenreID: genre.ID, URL: "https://b.example/rss", Label: "B", Disabled: true,
	}))

	all, err := store.ListFeeds(ctx, "user-1", genre.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := store.ListEnabledFeeds(ctx, "user-1", genre.ID)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "A", enabled[0].Label)
}

func TestStore_DeleteFeedsByGenre(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	genre := &Genre{Owner: "user-1", Name: "Tech"}
	require.NoError(t, store.CreateGenre(ctx, genre))
	require.NoError(t, store.CreateFeed(ctx, &Feed{Owner: "user-1", GenreID: genre.ID, URL: "https://a.example/rss"}))
	require.NoError(t, store.CreateFeed(ctx, &Feed{Owner: "user-1", GenreID: genre.ID, URL: "https://b.example/rss"}))

	count, err := store.DeleteFeedsByGenre(ctx, "user-1", genre.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	feeds, err := store.ListFeeds(ctx, "user-1", genre.ID)
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestStore_CreateAccessToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	token := &AccessToken{
		Owner:     "user-1",
		KeyPrefix: "MCP-abcd1234",
		TokenHash: "deadbeef",
		Name:      "laptop",
	}
	require.NoError(t, store.CreateAccessToken(ctx, token))
	require.NotEmpty(t, token.ID)

	// Scopes default applied
	assert.Equal(t, []string{DefaultTokenScope}, token.Scopes)

	retrieved, err := store.GetAccessTokenByHash(ctx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, token.ID, retrieved.ID)
	assert.Equal(t, "user-1", retrieved.Owner)
	assert.Equal(t, []string{DefaultTokenScope}, retrieved.Scopes)
	assert.Nil(t, retrieved.ExpiresAt)
	assert.Nil(t, retrieved.LastUsedAt)
}

func TestStore_GetAccessTokenByHash_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetAccessTokenByHash(context.Background(), "no-such-hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_AccessToken_ExpiresAtRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	token := &AccessToken{
		Owner:     "user-1",
		KeyPrefix: "MCP-expiring1",
		TokenHash: "cafebabe",
		ExpiresAt: &expires,
	}
	require.NoError(t, store.CreateAccessToken(ctx, token))

	retrieved, err := store.GetAccessToken(ctx, token.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.ExpiresAt)
	assert.True(t, expires.Equal(*retrieved.ExpiresAt))
	assert.False(t, retrieved.Expired(time.Now()))
	assert.True(t, retrieved.Expired(time.Now().Add(2*time.Hour)))
}

func TestStore_TouchAccessToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	token := &AccessToken{Owner: "user-1", KeyPrefix: "MCP-touch123", TokenHash: "1234"}
	require.NoError(t, store.CreateAccessToken(ctx, token))

	used := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.TouchAccessToken(ctx, token.ID, used))

	retrieved, err := store.GetAccessToken(ctx, token.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.LastUsedAt)
	assert.True(t, used.Equal(*retrieved.LastUsedAt))
}

func TestStore_ListAccessTokens_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	old := &AccessToken{
		Owner: "user-1", KeyPrefix: "MCP-old00000", TokenHash: "h-old",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	recent := &AccessToken{
		Owner: "user-1", KeyPrefix: "MCP-new00000", TokenHash: "h-new",
	}
	require.NoError(t, store.CreateAccessToken(ctx, old))
	require.NoError(t, store.CreateAccessToken(ctx, recent))

	tokens, err := store.ListAccessTokens(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, recent.ID, tokens[0].ID)
	assert.Equal(t, old.ID, tokens[1].ID)
}

func TestStore_DeleteAccessToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	token := &AccessToken{Owner: "user-1", KeyPrefix: "MCP-del00000", TokenHash: "h-del"}
	require.NoError(t, store.CreateAccessToken(ctx, token))
	require.NoError(t, store.DeleteAccessToken(ctx, token.ID))

	_, err := store.GetAccessToken(ctx, token.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
