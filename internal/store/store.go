// ABOUTME: Store interface and data types for feedgate persistence
// ABOUTME: Defines Genre, Feed, AccessToken structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateGenre is returned when an owner already has a genre with the same name
var ErrDuplicateGenre = errors.New("genre already exists")

// ErrDuplicateFeed is returned when an owner already subscribes to a feed URL
var ErrDuplicateFeed = errors.New("feed already exists for this user/url")

// DefaultTokenScope is the scope granted to access tokens created without
// an explicit scope list.
const DefaultTokenScope = "tools.call"

// Genre represents a user-owned category grouping feeds
type Genre struct {
	ID        string
	Owner     string
	Name      string
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Feed represents a subscribed syndication source belonging to one genre
type Feed struct {
	ID        string
	Owner     string
	GenreID   string
	URL       string
	Label     string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccessToken represents an opaque bearer credential record. Only the digest
// of the secret is persisted; the plaintext is handed out exactly once, at
// creation time.
type AccessToken struct {
	ID         string
	Owner      string
	KeyPrefix  string
	TokenHash  string
	Scopes     []string
	Name       string
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the token carries an expiry in the past.
func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// GenreStore defines methods for genre persistence
type GenreStore interface {
	CreateGenre(ctx context.Context, genre *Genre) error
	GetGenre(ctx context.Context, id string) (*Genre, error)
	ListGenres(ctx context.Context, owner string) ([]*Genre, error)
	UpdateGenre(ctx context.Context, genre *Genre) error
	DeleteGenre(ctx context.Context, id string) error
}

// FeedStore defines methods for feed persistence
type FeedStore interface {
	CreateFeed(ctx context.Context, feed *Feed) error
	GetFeed(ctx context.Context, id string) (*Feed, error)
	ListFeeds(ctx context.Context, owner, genreID string) ([]*Feed, error)
	ListEnabledFeeds(ctx context.Context, owner, genreID string) ([]*Feed, error)
	DeleteFeed(ctx context.Context, id string) error
	DeleteFeedsByGenre(ctx context.Context, owner, genreID string) (int, error)
}

// TokenStore defines methods for access token persistence
type TokenStore interface {
	CreateAccessToken(ctx context.Context, token *AccessToken) error
	GetAccessToken(ctx context.Context, id string) (*AccessToken, error)
	GetAccessTokenByHash(ctx context.Context, tokenHash string) (*AccessToken, error)
	ListAccessTokens(ctx context.Context, owner string) ([]*AccessToken, error)
	TouchAccessToken(ctx context.Context, id string, usedAt time.Time) error
	DeleteAccessToken(ctx context.Context, id string) error
}

// Store combines all persistence interfaces implemented by SQLiteStore
type Store interface {
	GenreStore
	FeedStore
	TokenStore

	// Close releases any resources held by the store
	Close() error
}
