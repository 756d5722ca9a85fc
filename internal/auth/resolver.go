// ABOUTME: Dual-scheme bearer credential resolver
// ABOUTME: Picks opaque access token or session JWT by secret prefix and resolves identity

package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fluxmill/feedgate/internal/store"
)

// CredentialKind identifies which scheme authenticated a request.
type CredentialKind string

// The closed set of credential kinds.
const (
	KindAccessToken CredentialKind = "access_token"
	KindSession     CredentialKind = "session"
)

// Identity is the result of a successful credential resolution.
type Identity struct {
	UserID string
	Kind   CredentialKind
	Scopes []string // populated only for access tokens
}

// Resolver resolves a raw Authorization header value to an Identity.
// Secrets carrying TokenPrefix take the opaque-token path; everything else is
// treated as a session credential and validated against the session issuer.
type Resolver struct {
	accessTokens *accessTokenVerifier
	sessions     SessionVerifier
	logger       *slog.Logger
}

// NewResolver creates a Resolver over the given token store and session verifier.
func NewResolver(tokens store.TokenStore, sessions SessionVerifier, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		accessTokens: &accessTokenVerifier{
			tokens: tokens,
			logger: logger.With("component", "auth"),
			now:    time.Now,
		},
		sessions: sessions,
		logger:   logger.With("component", "auth"),
	}
}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrAuthHeader
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", ErrAuthHeader
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", ErrAuthHeader
	}
	return token, nil
}

// Resolve authenticates the Authorization header value and returns the caller
// identity. Failures map onto the auth error taxonomy: ErrAuthHeader for a
// missing/malformed header, ErrTokenFormat / ErrInvalidToken / ErrTokenExpired
// for the opaque path, ErrInvalidSession for an unverifiable session
// credential.
func (r *Resolver) Resolve(ctx context.Context, authHeader string) (*Identity, error) {
	secret, err := extractBearerToken(authHeader)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(secret, TokenPrefix) {
		token, err := r.accessTokens.verify(ctx, secret)
		if err != nil {
			return nil, err
		}
		return &Identity{
			UserID: token.Owner,
			Kind:   KindAccessToken,
			Scopes: token.Scopes,
		}, nil
	}

	// Session path: never writes, only validates against the issuer.
	userID, err := r.sessions.Verify(secret)
	if err != nil {
		r.logger.Debug("session credential rejected", "error", err)
		return nil, ErrInvalidSession
	}
	return &Identity{UserID: userID, Kind: KindSession}, nil
}
