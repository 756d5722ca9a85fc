// ABOUTME: Opaque access token minting and verification
// ABOUTME: Secrets carry an MCP- prefix; only their digest is ever persisted

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fluxmill/feedgate/internal/store"
)

// Authentication errors
var (
	ErrAuthHeader     = errors.New("authorization header is missing or invalid")
	ErrTokenFormat    = errors.New("malformed access token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidSession = errors.New("invalid session credential")
)

// TokenPrefix marks a bearer secret as an opaque access token rather than a
// session credential.
const TokenPrefix = "MCP-"

// KeyPrefixLen is how many leading characters of the plaintext secret are
// stored as the display prefix.
const KeyPrefixLen = 12

// secretEncoding is unpadded lowercase base32, chosen so secrets survive
// copy-paste without case or padding surprises.
var secretEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh random token plaintext with TokenPrefix.
func GenerateSecret() (string, error) {
	buf := make([]byte, 30)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	return TokenPrefix + secretEncoding.EncodeToString(buf), nil
}

// TokenIssuer mints access tokens against the token store.
type TokenIssuer struct {
	tokens store.TokenStore
}

// NewTokenIssuer creates a TokenIssuer backed by the given store.
func NewTokenIssuer(tokens store.TokenStore) *TokenIssuer {
	return &TokenIssuer{tokens: tokens}
}

// Issue creates a new access token for owner and returns the plaintext secret
// together with the stored record. The plaintext is returned exactly once;
// only its digest is persisted.
func (i *TokenIssuer) Issue(ctx context.Context, owner, name string, scopes []string, expiresAt *time.Time) (string, *store.AccessToken, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return "", nil, err
	}

	token := &store.AccessToken{
		Owner:     owner,
		KeyPrefix: secret[:KeyPrefixLen],
		TokenHash: HashSecret(secret),
		Scopes:    scopes,
		Name:      name,
		ExpiresAt: expiresAt,
	}
	if err := i.tokens.CreateAccessToken(ctx, token); err != nil {
		return "", nil, fmt.Errorf("storing access token: %w", err)
	}

	return secret, token, nil
}

// accessTokenVerifier resolves MCP- prefixed secrets against the token store.
type accessTokenVerifier struct {
	tokens store.TokenStore
	logger *slog.Logger
	now    func() time.Time
}

// verify digests the secret, looks up the matching record, checks expiry, and
// best-effort records the use. Returns the owning account identifier.
func (v *accessTokenVerifier) verify(ctx context.Context, secret string) (*store.AccessToken, error) {
	if !strings.HasPrefix(secret, TokenPrefix) {
		return nil, ErrInvalidToken
	}
	if len(secret) < KeyPrefixLen {
		return nil, ErrTokenFormat
	}

	token, err := v.tokens.GetAccessTokenByHash(ctx, HashSecret(secret))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("looking up access token: %w", err)
	}

	if token.Expired(v.now()) {
		return nil, ErrTokenExpired
	}

	// Last-used tracking is best effort; a write failure must not fail auth.
	if err := v.tokens.TouchAccessToken(ctx, token.ID, v.now()); err != nil {
		v.logger.Warn("failed to update token last_used_at", "token_id", token.ID, "error", err)
	}

	return token, nil
}
