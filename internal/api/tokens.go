// ABOUTME: REST handlers for creating, listing, and revoking access tokens
// ABOUTME: Responses never include the token digest; plaintext only on create

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fluxmill/feedgate/internal/auth"
	"github.com/fluxmill/feedgate/internal/store"
)

type createTokenRequest struct {
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
	ExpiresAt string   `json:"expiresAt"`
}

type createTokenResponse struct {
	Token     string  `json:"token"`
	ID        string  `json:"id"`
	ExpiresAt *string `json:"expiresAt"`
}

// tokenItem is the list representation of a token. The digest and plaintext
// secret are deliberately absent.
type tokenItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Scopes     []string `json:"scopes"`
	ExpiresAt  *string  `json:"expiresAt"`
	LastUsedAt *string  `json:"lastUsedAt"`
	CreatedAt  string   `json:"createdAt"`
}

func (h *Handler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	// All fields are optional; an empty body is a valid request.
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "mcp_tokens.create_failed", "invalid request body", nil)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "mcp_tokens.create_failed", "expiresAt must be an RFC 3339 timestamp", nil)
			return
		}
		expiresAt = &parsed
	}

	secret, record, err := h.issuer.Issue(r.Context(), identity.UserID, req.Name, req.Scopes, expiresAt)
	if err != nil {
		h.logger.Error("failed to create access token", "owner", identity.UserID, "error", err)
		h.writeError(w, http.StatusBadRequest, "mcp_tokens.create_failed", "failed to create token", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, createTokenResponse{
		Token:     secret,
		ID:        record.ID,
		ExpiresAt: formatOptionalTime(record.ExpiresAt),
	})
}

func (h *Handler) handleListTokens(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	tokens, err := h.store.ListAccessTokens(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list access tokens", "owner", identity.UserID, "error", err)
		h.writeError(w, http.StatusBadRequest, "mcp_tokens.list_failed", "failed to list tokens", nil)
		return
	}

	items := make([]tokenItem, 0, len(tokens))
	for _, t := range tokens {
		items = append(items, tokenItem{
			ID:         t.ID,
			Name:       t.Name,
			Scopes:     t.Scopes,
			ExpiresAt:  formatOptionalTime(t.ExpiresAt),
			LastUsedAt: formatOptionalTime(t.LastUsedAt),
			CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())
	id := r.PathValue("id")

	token, err := h.store.GetAccessToken(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusBadRequest, "mcp_tokens.revoke_failed", "token not found", nil)
			return
		}
		h.logger.Error("failed to load access token", "id", id, "error", err)
		h.writeError(w, http.StatusBadRequest, "mcp_tokens.revoke_failed", "failed to revoke token", nil)
		return
	}
	if token.Owner != identity.UserID {
		h.writeError(w, http.StatusBadRequest, "mcp_tokens.revoke_failed", "token not found", nil)
		return
	}

	if err := h.store.DeleteAccessToken(r.Context(), id); err != nil {
		h.logger.Error("failed to delete access token", "id", id, "error", err)
		h.writeError(w, http.StatusBadRequest, "mcp_tokens.revoke_failed", "failed to revoke token", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
