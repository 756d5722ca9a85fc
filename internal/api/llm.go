// ABOUTME: REST handlers for AI queries and the model catalog
// ABOUTME: Maps provider and payload failures onto the REST error envelope

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fluxmill/feedgate/internal/llm"
)

type llmQueryRequest struct {
	Type    llm.QueryType `json:"type"`
	Payload llm.Payload   `json:"payload"`
	Model   string        `json:"model"`
	Options *llm.Options  `json:"options"`
}

func (h *Handler) handleLLMQuery(w http.ResponseWriter, r *http.Request) {
	var req llmQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "llm.query_failed", "invalid request body", nil)
		return
	}

	result, err := h.llm.Query(r.Context(), req.Type, req.Payload, req.Model, req.Options)
	if err != nil {
		h.writeLLMError(w, "llm.query_failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLLMModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.llm.ListModels(r.Context())
	if err != nil {
		h.writeLLMError(w, "llm.models_failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// writeLLMError translates provider-layer failures into HTTP responses: bad
// payloads are the caller's fault, a missing API key is a deployment problem,
// and upstream errors keep the status the provider returned.
func (h *Handler) writeLLMError(w http.ResponseWriter, code string, err error) {
	var payloadErr *llm.PayloadError
	if errors.As(err, &payloadErr) {
		h.writeError(w, http.StatusBadRequest, code, payloadErr.Error(), nil)
		return
	}
	if errors.Is(err, llm.ErrMissingAPIKey) {
		h.writeError(w, http.StatusInternalServerError, code, "AI provider is not configured", nil)
		return
	}
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		h.logger.Warn("upstream provider error", "status", upstream.Status)
		h.writeError(w, upstream.Status, code, "upstream provider error", map[string]any{
			"status": upstream.Status,
		})
		return
	}
	h.logger.Error("ai query failed", "error", err)
	h.writeError(w, http.StatusInternalServerError, code, "AI request failed", nil)
}
