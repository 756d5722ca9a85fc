// ABOUTME: Feed persistence for the SQLite store
// ABOUTME: Feeds are unique per (owner, url) and belong to exactly one genre

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateFeed creates a new feed subscription. Returns ErrDuplicateFeed when
// the owner already subscribes to the URL.
func (s *SQLiteStore) CreateFeed(ctx context.Context, feed *Feed) error {
	if feed.ID == "" {
		feed.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if feed.CreatedAt.IsZero() {
		feed.CreatedAt = now
	}
	if feed.UpdatedAt.IsZero() {
		feed.UpdatedAt = now
	}

	query := `
		INSERT INTO feeds (id, owner, genre_id, url, label, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		feed.ID,
		feed.Owner,
		feed.GenreID,
		feed.URL,
		feed.Label,
		boolToInt(feed.Disabled),
		feed.CreatedAt.Format(time.RFC3339),
		feed.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateFeed
		}
		return fmt.Errorf("inserting feed: %w", err)
	}

	s.logger.Debug("created feed", "id", feed.ID, "owner", feed.Owner, "url", feed.URL)
	return nil
}

// GetFeed retrieves a feed by ID.
// Returns ErrNotFound if the feed doesn't exist.
func (s *SQLiteStore) GetFeed(ctx context.Context, id string) (*Feed, error) {
	query := feedSelect + ` WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	feed, err := s.scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying feed: %w", err)
	}
	return feed, nil
}

// ListFeeds returns all feeds under a genre for an owner, ordered by label
// then URL for a stable listing.
func (s *SQLiteStore) ListFeeds(ctx context.Context, owner, genreID string) ([]*Feed, error) {
	query := feedSelect + `
		WHERE owner = ? AND genre_id = ?
		ORDER BY label ASC, url ASC
	`
	return s.queryFeeds(ctx, query, owner, genreID)
}

// ListEnabledFeeds returns the feeds ListFeeds would, minus disabled ones.
func (s *SQLiteStore) ListEnabledFeeds(ctx context.Context, owner, genreID string) ([]*Feed, error) {
	query := feedSelect + `
		WHERE owner = ? AND genre_id = ? AND disabled = 0
		ORDER BY label ASC, url ASC
	`
	return s.queryFeeds(ctx, query, owner, genreID)
}

// DeleteFeed removes a feed by ID.
func (s *SQLiteStore) DeleteFeed(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted feed", "id", id)
	return nil
}

// DeleteFeedsByGenre removes every feed of a genre for an owner and returns
// how many rows were deleted. Used by the explicit genre-delete cascade.
func (s *SQLiteStore) DeleteFeedsByGenre(ctx context.Context, owner, genreID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM feeds WHERE owner = ? AND genre_id = ?`, owner, genreID)
	if err != nil {
		return 0, fmt.Errorf("deleting feeds by genre: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking delete result: %w", err)
	}

	s.logger.Debug("deleted feeds by genre", "genre_id", genreID, "count", affected)
	return int(affected), nil
}

const feedSelect = `
	SELECT id, owner, genre_id, url, label, disabled, created_at, updated_at
	FROM feeds`

// scanner abstracts *sql.Row and *sql.Rows for scanFeed.
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanFeed(row scanner) (*Feed, error) {
	var feed Feed
	var disabled int
	var createdAt, updatedAt string

	if err := row.Scan(
		&feed.ID,
		&feed.Owner,
		&feed.GenreID,
		&feed.URL,
		&feed.Label,
		&disabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	feed.Disabled = disabled != 0
	feed.CreatedAt = s.parseTime(createdAt, "created_at", feed.ID)
	feed.UpdatedAt = s.parseTime(updatedAt, "updated_at", feed.ID)
	return &feed, nil
}

func (s *SQLiteStore) queryFeeds(ctx context.Context, query string, args ...any) ([]*Feed, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		feed, err := s.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
