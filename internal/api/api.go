// ABOUTME: Session-authenticated REST surface for token management and AI queries
// ABOUTME: JSON handlers with a structured error envelope

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fluxmill/feedgate/internal/auth"
	"github.com/fluxmill/feedgate/internal/llm"
	"github.com/fluxmill/feedgate/internal/store"
)

// Handler serves the /api routes.
type Handler struct {
	store    store.Store
	issuer   *auth.TokenIssuer
	resolver *auth.Resolver
	llm      *llm.Client
	logger   *slog.Logger
}

// Config holds the handler dependencies.
type Config struct {
	Store    store.Store
	Issuer   *auth.TokenIssuer
	Resolver *auth.Resolver
	LLM      *llm.Client
	Logger   *slog.Logger
}

// NewHandler wires the REST handlers.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")
	return &Handler{
		store:    cfg.Store,
		issuer:   cfg.Issuer,
		resolver: cfg.Resolver,
		llm:      cfg.LLM,
		logger:   logger,
	}
}

// RegisterRoutes registers the REST endpoints on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/mcp/tokens", h.requireSession(h.handleCreateToken))
	mux.HandleFunc("GET /api/mcp/tokens", h.requireSession(h.handleListTokens))
	mux.HandleFunc("DELETE /api/mcp/tokens/{id}", h.requireSession(h.handleRevokeToken))
	mux.HandleFunc("POST /api/llm/query", h.requireSession(h.handleLLMQuery))
	mux.HandleFunc("GET /api/llm/models", h.requireSession(h.handleLLMModels))
}

// requireSession authenticates the request with a session credential and
// stashes the identity in the request context. Opaque access tokens are not
// accepted here; they are scoped to the tool endpoint, and rejecting them by
// prefix avoids verifying them (and touching last_used_at) first.
func (h *Handler) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if secret, ok := strings.CutPrefix(header, "Bearer "); ok && strings.HasPrefix(secret, auth.TokenPrefix) {
			h.writeError(w, http.StatusUnauthorized, "auth.session_required", "a session credential is required", nil)
			return
		}
		identity, err := h.resolver.Resolve(r.Context(), header)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "auth.unauthorized", "authentication required", nil)
			return
		}
		if identity.Kind != auth.KindSession {
			h.writeError(w, http.StatusUnauthorized, "auth.session_required", "a session credential is required", nil)
			return
		}
		next(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	}
}

// errorEnvelope is the REST error response shape.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	h.writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message, Details: details}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}
