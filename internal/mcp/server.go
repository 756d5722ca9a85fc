// ABOUTME: JSON-RPC 2.0 HTTP endpoint exposing the feed tools to MCP clients
// ABOUTME: Handles single and batch envelopes, notifications, and auth mapping

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fluxmill/feedgate/internal/auth"
)

// protocolVersion is advertised in initialize responses.
const protocolVersion = "2024-11-05"

// Server identity reported by initialize.
const (
	serverName    = "feedgate"
	serverVersion = "0.1.0"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Implementation-defined error codes for the auth layer.
const (
	CodeAuthHeader     = -32001
	CodeTokenFormat    = -32002
	CodeTokenInvalid   = -32003
	CodeTokenExpired   = -32004
	CodeSessionInvalid = -32005
	CodeForbidden      = -32006
)

// Config holds configuration for the MCP server.
type Config struct {
	Resolver *auth.Resolver
	Tools    *ToolSet
	Logger   *slog.Logger
}

// Server implements the JSON-RPC tool endpoint.
type Server struct {
	resolver *auth.Resolver
	tools    *ToolSet
	logger   *slog.Logger
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if cfg.Tools == nil {
		return nil, errors.New("tool set is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp")
	return &Server{
		resolver: cfg.Resolver,
		tools:    cfg.Tools,
		logger:   logger,
	}, nil
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, errorResponse(nil, JSONRPCParseError, "failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.writeResponse(w, http.StatusBadRequest, errorResponse(nil, JSONRPCInvalidRequest, "request body too large"))
		return
	}

	if isBatch(body) {
		s.handleBatch(w, r, body)
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if json.Valid(body) {
			s.writeResponse(w, http.StatusOK, errorResponse(nil, JSONRPCInvalidRequest, "Invalid Request. Not conforming to JSON-RPC 2.0."))
		} else {
			s.writeResponse(w, http.StatusOK, errorResponse(nil, JSONRPCParseError, "Parse error. Invalid JSON was received."))
		}
		return
	}

	resp, status := s.dispatch(r, req)
	if resp == nil {
		// Notification: acknowledged, no body
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeResponse(w, status, resp)
}

// handleBatch processes a JSON array of envelopes. Envelopes are isolated
// from each other; notification envelopes produce no response entry; the
// HTTP status is the most severe individual outcome.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var envelopes []json.RawMessage
	if err := json.Unmarshal(body, &envelopes); err != nil {
		s.writeResponse(w, http.StatusOK, errorResponse(nil, JSONRPCParseError, "Parse error. Invalid JSON was received."))
		return
	}

	responses := make([]*JSONRPCResponse, 0, len(envelopes))
	httpStatus := http.StatusOK
	for _, raw := range envelopes {
		var req JSONRPCRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			responses = append(responses, errorResponse(nil, JSONRPCInvalidRequest, "Invalid Request. Not conforming to JSON-RPC 2.0."))
			continue
		}
		resp, status := s.dispatch(r, req)
		if resp == nil {
			continue
		}
		responses = append(responses, resp)
		if status > httpStatus {
			httpStatus = status
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(responses); err != nil {
		s.logger.Warn("failed to encode batch response", "error", err)
	}
}

// dispatch processes one envelope. A nil response means the envelope was a
// notification and only an acknowledgment is owed.
func (s *Server) dispatch(r *http.Request, req JSONRPCRequest) (*JSONRPCResponse, int) {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, JSONRPCInvalidRequest, "Invalid Request. Not conforming to JSON-RPC 2.0."), http.StatusOK
	}

	if isNotification(req.ID) {
		s.logger.Debug("accepted notification", "method", req.Method)
		return nil, http.StatusAccepted
	}

	s.logger.Debug("rpc request", "method", req.Method)

	// initialize is the one method reachable without credentials
	if req.Method == "initialize" || req.Method == "mcp.initialize" {
		return resultResponse(req.ID, s.initializeResult()), http.StatusOK
	}

	identity, err := s.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		return s.errorFor(req.ID, err)
	}

	switch req.Method {
	case "shutdown", "mcp.shutdown":
		return resultResponse(req.ID, json.RawMessage("null")), http.StatusOK
	case "tools/list":
		return resultResponse(req.ID, s.tools.List()), http.StatusOK
	case "tools/call":
		result, err := s.handleToolsCall(r, identity, req.Params)
		if err != nil {
			return s.errorFor(req.ID, err)
		}
		return resultResponse(req.ID, result), http.StatusOK
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "Method not found: "+req.Method), http.StatusOK
	}
}

func (s *Server) handleToolsCall(r *http.Request, identity *auth.Identity, rawParams json.RawMessage) (*CallToolResult, error) {
	var params CallToolParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, &invalidParamsError{message: "invalid params"}
		}
	}
	if params.Name == "" {
		return nil, &invalidParamsError{message: "Tool name is required"}
	}

	s.logger.Debug("tools/call", "tool", params.Name, "user", identity.UserID)
	return s.tools.Call(r.Context(), identity.UserID, params.Name, params.Arguments)
}

func (s *Server) initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	}
}

// errorFor maps an execution error onto a JSON-RPC error response and the
// HTTP status it should carry.
func (s *Server) errorFor(id json.RawMessage, err error) (*JSONRPCResponse, int) {
	var invalidParams *invalidParamsError
	var notFound *notFoundError

	switch {
	case errors.Is(err, auth.ErrAuthHeader):
		return errorResponse(id, CodeAuthHeader, err.Error()), http.StatusUnauthorized
	case errors.Is(err, auth.ErrTokenFormat):
		return errorResponse(id, CodeTokenFormat, err.Error()), http.StatusUnauthorized
	case errors.Is(err, auth.ErrTokenExpired):
		return errorResponse(id, CodeTokenExpired, err.Error()), http.StatusUnauthorized
	case errors.Is(err, auth.ErrInvalidToken):
		return errorResponse(id, CodeTokenInvalid, err.Error()), http.StatusUnauthorized
	case errors.Is(err, auth.ErrInvalidSession):
		return errorResponse(id, CodeSessionInvalid, err.Error()), http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return errorResponse(id, CodeForbidden, err.Error()), http.StatusForbidden
	case errors.As(err, &notFound):
		return errorResponse(id, JSONRPCMethodNotFound, notFound.message), http.StatusOK
	case errors.As(err, &invalidParams):
		return errorResponse(id, JSONRPCInvalidParams, invalidParams.message), http.StatusOK
	default:
		s.logger.Warn("rpc internal error", "error", err)
		return errorResponse(id, JSONRPCInternalError, err.Error()), http.StatusInternalServerError
	}
}

// isNotification reports whether the envelope lacks a request id.
func isNotification(id json.RawMessage) bool {
	return len(id) == 0
}

// isBatch reports whether the body's first JSON token opens an array.
func isBatch(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	id = normalizeID(id)
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      normalizeID(id),
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}

// normalizeID keeps the response id field serializable: an absent id is
// rendered as null rather than omitted.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
