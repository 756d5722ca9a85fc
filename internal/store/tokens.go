// ABOUTME: Access token persistence for the SQLite store
// ABOUTME: Only token digests are stored; lookup is by digest, never plaintext

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAccessToken creates a new access token record. The token's Scopes
// default to DefaultTokenScope when empty.
func (s *SQLiteStore) CreateAccessToken(ctx context.Context, token *AccessToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = now
	}
	if len(token.Scopes) == 0 {
		token.Scopes = []string{DefaultTokenScope}
	}

	scopes, err := json.Marshal(token.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}

	query := `
		INSERT INTO access_tokens (id, owner, key_prefix, token_hash, scopes, name, expires_at, last_used_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		token.ID,
		token.Owner,
		token.KeyPrefix,
		token.TokenHash,
		string(scopes),
		token.Name,
		nullTime(token.ExpiresAt),
		nullTime(token.LastUsedAt),
		token.CreatedAt.Format(time.RFC3339),
		token.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("access token with prefix %q already exists", token.KeyPrefix)
		}
		return fmt.Errorf("inserting access token: %w", err)
	}

	s.logger.Debug("created access token", "id", token.ID, "owner", token.Owner, "key_prefix", token.KeyPrefix)
	return nil
}

// GetAccessToken retrieves an access token by ID.
// Returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStore) GetAccessToken(ctx context.Context, id string) (*AccessToken, error) {
	row := s.db.QueryRowContext(ctx, tokenSelect+` WHERE id = ?`, id)
	token, err := s.scanAccessToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying access token: %w", err)
	}
	return token, nil
}

// GetAccessTokenByHash retrieves an access token by its stored digest.
// Returns ErrNotFound if no record matches.
func (s *SQLiteStore) GetAccessTokenByHash(ctx context.Context, tokenHash string) (*AccessToken, error) {
	row := s.db.QueryRowContext(ctx, tokenSelect+` WHERE token_hash = ?`, tokenHash)
	token, err := s.scanAccessToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying access token by hash: %w", err)
	}
	return token, nil
}

// ListAccessTokens returns all access tokens for an owner, newest first.
func (s *SQLiteStore) ListAccessTokens(ctx context.Context, owner string) ([]*AccessToken, error) {
	query := tokenSelect + `
		WHERE owner = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("querying access tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*AccessToken
	for rows.Next() {
		token, err := s.scanAccessToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning access token: %w", err)
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

// TouchAccessToken records the last successful use of a token.
func (s *SQLiteStore) TouchAccessToken(ctx context.Context, id string, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE access_tokens SET last_used_at = ? WHERE id = ?`,
		usedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating last_used_at: %w", err)
	}
	return nil
}

// DeleteAccessToken removes (revokes) an access token by ID.
func (s *SQLiteStore) DeleteAccessToken(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted access token", "id", id)
	return nil
}

const tokenSelect = `
	SELECT id, owner, key_prefix, token_hash, scopes, name, expires_at, last_used_at, created_at, updated_at
	FROM access_tokens`

func (s *SQLiteStore) scanAccessToken(row scanner) (*AccessToken, error) {
	var token AccessToken
	var scopes string
	var expiresAt, lastUsedAt sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&token.ID,
		&token.Owner,
		&token.KeyPrefix,
		&token.TokenHash,
		&scopes,
		&token.Name,
		&expiresAt,
		&lastUsedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(scopes), &token.Scopes); err != nil {
		s.logger.Warn("failed to decode token scopes", "id", token.ID, "error", err)
		token.Scopes = []string{DefaultTokenScope}
	}
	if expiresAt.Valid {
		t := s.parseTime(expiresAt.String, "expires_at", token.ID)
		token.ExpiresAt = &t
	}
	if lastUsedAt.Valid {
		t := s.parseTime(lastUsedAt.String, "last_used_at", token.ID)
		token.LastUsedAt = &t
	}
	token.CreatedAt = s.parseTime(createdAt, "created_at", token.ID)
	token.UpdatedAt = s.parseTime(updatedAt, "updated_at", token.ID)
	return &token, nil
}
