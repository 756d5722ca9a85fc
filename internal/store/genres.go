// ABOUTME: Genre persistence for the SQLite store
// ABOUTME: Genres are per-owner categories; names are unique within an owner

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateGenre creates a new genre. The ID and timestamps are filled in if
// unset. Returns ErrDuplicateGenre when the owner already has a genre with
// the same name.
func (s *SQLiteStore) CreateGenre(ctx context.Context, genre *Genre) error {
	if genre.ID == "" {
		genre.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if genre.CreatedAt.IsZero() {
		genre.CreatedAt = now
	}
	if genre.UpdatedAt.IsZero() {
		genre.UpdatedAt = now
	}

	query := `
		INSERT INTO genres (id, owner, name, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		genre.ID,
		genre.Owner,
		genre.Name,
		genre.SortOrder,
		genre.CreatedAt.Format(time.RFC3339),
		genre.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateGenre
		}
		return fmt.Errorf("inserting genre: %w", err)
	}

	s.logger.Debug("created genre", "id", genre.ID, "owner", genre.Owner, "name", genre.Name)
	return nil
}

// GetGenre retrieves a genre by ID.
// Returns ErrNotFound if the genre doesn't exist.
func (s *SQLiteStore) GetGenre(ctx context.Context, id string) (*Genre, error) {
	query := `
		SELECT id, owner, name, sort_order, created_at, updated_at
		FROM genres
		WHERE id = ?
	`

	var genre Genre
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&genre.ID,
		&genre.Owner,
		&genre.Name,
		&genre.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying genre: %w", err)
	}

	genre.CreatedAt = s.parseTime(createdAt, "created_at", genre.ID)
	genre.UpdatedAt = s.parseTime(updatedAt, "updated_at", genre.ID)
	return &genre, nil
}

// ListGenres returns all genres for an owner, ordered by sort_order then name.
func (s *SQLiteStore) ListGenres(ctx context.Context, owner string) ([]*Genre, error) {
	query := `
		SELECT id, owner, name, sort_order, created_at, updated_at
		FROM genres
		WHERE owner = ?
		ORDER BY sort_order ASC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("querying genres: %w", err)
	}
	defer rows.Close()

	var genres []*Genre
	for rows.Next() {
		var genre Genre
		var createdAt, updatedAt string
		if err := rows.Scan(
			&genre.ID,
			&genre.Owner,
			&genre.Name,
			&genre.SortOrder,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning genre: %w", err)
		}
		genre.CreatedAt = s.parseTime(createdAt, "created_at", genre.ID)
		genre.UpdatedAt = s.parseTime(updatedAt, "updated_at", genre.ID)
		genres = append(genres, &genre)
	}

	return genres, rows.Err()
}

// UpdateGenre updates a genre's name, sort order, and updated_at timestamp.
// Returns ErrNotFound if the genre doesn't exist.
func (s *SQLiteStore) UpdateGenre(ctx context.Context, genre *Genre) error {
	genre.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE genres
		SET name = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		genre.Name,
		genre.SortOrder,
		genre.UpdatedAt.Format(time.RFC3339),
		genre.ID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateGenre
		}
		return fmt.Errorf("updating genre: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteGenre removes a genre by ID. The caller is responsible for deleting
// the genre's feeds first; the schema does not cascade.
func (s *SQLiteStore) DeleteGenre(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM genres WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting genre: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted genre", "id", id)
	return nil
}
