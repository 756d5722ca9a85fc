// ABOUTME: Package doc for the session-scoped REST API
// ABOUTME: Token management and AI query endpoints under /api

// Package api serves the REST endpoints that sit next to the tool endpoint:
// access-token management under /api/mcp/tokens and AI queries under /api/llm.
// All routes require a session credential; opaque access tokens are rejected
// so a leaked tool token cannot mint further tokens.
package api
