// ABOUTME: Tool dispatch table for genres, feeds, and article aggregation
// ABOUTME: Validates arguments, enforces ownership, returns JSON text content

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fluxmill/feedgate/internal/feed"
	"github.com/fluxmill/feedgate/internal/store"
)

// errForbidden marks an operation on a record the caller does not own.
var errForbidden = errors.New("forbidden")

// invalidParamsError rejects a tool call with bad or missing arguments.
type invalidParamsError struct {
	message string
}

func (e *invalidParamsError) Error() string { return e.message }

// notFoundError reports a missing tool or record.
type notFoundError struct {
	message string
}

func (e *notFoundError) Error() string { return e.message }

// ToolInfo describes one tool for tools/list.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents content in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// toolDefinitions is the static catalog returned by tools/list.
var toolDefinitions = []ToolInfo{
	{
		Name:        "genre.list",
		Description: "List all genres of the authenticated user.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	},
	{
		Name:        "genre.create",
		Description: "Create a new genre.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
	},
	{
		Name:        "genre.update",
		Description: "Rename an existing genre.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"},"name":{"type":"string"}},"required":["id","name"]}`),
	},
	{
		Name:        "genre.delete",
		Description: "Delete a genre and its feeds.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:        "feed.list",
		Description: "List feeds under a genre.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"genreId":{"type":"string"}},"required":["genreId"]}`),
	},
	{
		Name:        "feed.add",
		Description: "Add an RSS feed URL to a genre. Label is auto-fetched from the feed title.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"genreId":{"type":"string"},"url":{"type":"string"}},"required":["genreId","url"]}`),
	},
	{
		Name:        "feed.remove",
		Description: "Remove a feed by id.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:        "articles.fetchByGenre",
		Description: "Fetch articles from all feeds under a genre and merge by recency.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"genreId":{"type":"string"},"limit":{"type":"number"}},"required":["genreId"]}`),
	},
	{
		Name:        "articles.fetchByUrl",
		Description: "Fetch articles directly from a single feed URL.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"},"limit":{"type":"number"}},"required":["url"]}`),
	},
}

// ToolSet executes tool calls against the store and aggregation engine.
type ToolSet struct {
	store      store.Store
	aggregator *feed.Aggregator
	logger     *slog.Logger
}

// NewToolSet wires the tool handlers.
func NewToolSet(s store.Store, aggregator *feed.Aggregator, logger *slog.Logger) *ToolSet {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tools")
	return &ToolSet{store: s, aggregator: aggregator, logger: logger}
}

// List returns the tool catalog.
func (t *ToolSet) List() ListToolsResult {
	return ListToolsResult{Tools: toolDefinitions}
}

// toolArgs are the union of all tool arguments; each handler reads its own.
type toolArgs struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	GenreID string   `json:"genreId"`
	URL     string   `json:"url"`
	Limit   *float64 `json:"limit"`
}

// Call executes the named tool on behalf of userID and wraps the outcome as
// a single text content payload.
func (t *ToolSet) Call(ctx context.Context, userID, name string, rawArgs json.RawMessage) (*CallToolResult, error) {
	var args toolArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, &invalidParamsError{message: "invalid tool arguments"}
		}
	}

	var (
		payload any
		err     error
	)
	switch name {
	case "genre.list":
		payload, err = t.listGenres(ctx, userID)
	case "genre.create":
		payload, err = t.createGenre(ctx, userID, args)
	case "genre.update":
		payload, err = t.updateGenre(ctx, userID, args)
	case "genre.delete":
		payload, err = t.deleteGenre(ctx, userID, args)
	case "feed.list":
		payload, err = t.listFeeds(ctx, userID, args)
	case "feed.add":
		payload, err = t.addFeed(ctx, userID, args)
	case "feed.remove":
		payload, err = t.removeFeed(ctx, userID, args)
	case "articles.fetchByGenre":
		payload, err = t.fetchByGenre(ctx, userID, args)
	case "articles.fetchByUrl":
		payload, err = t.fetchByURL(ctx, args)
	default:
		return nil, &notFoundError{message: "Tool not found: " + name}
	}
	if err != nil {
		return nil, err
	}

	text, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &CallToolResult{Content: []Content{{Type: "text", Text: string(text)}}}, nil
}

// Wire shapes for tool results.

type genreItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type feedItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type successResult struct {
	Success bool `json:"success"`
}

// ensureGenre loads the genre and verifies the caller owns it.
func (t *ToolSet) ensureGenre(ctx context.Context, userID, genreID string) (*store.Genre, error) {
	if genreID == "" {
		return nil, &invalidParamsError{message: "genreId is required"}
	}
	genre, err := t.store.GetGenre(ctx, genreID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &notFoundError{message: "genre not found"}
		}
		return nil, err
	}
	if genre.Owner != userID {
		return nil, errForbidden
	}
	return genre, nil
}

// ensureFeed loads the feed and verifies the caller owns it.
func (t *ToolSet) ensureFeed(ctx context.Context, userID, feedID string) (*store.Feed, error) {
	if feedID == "" {
		return nil, &invalidParamsError{message: "id is required"}
	}
	f, err := t.store.GetFeed(ctx, feedID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &notFoundError{message: "feed not found"}
		}
		return nil, err
	}
	if f.Owner != userID {
		return nil, errForbidden
	}
	return f, nil
}

func (t *ToolSet) listGenres(ctx context.Context, userID string) (any, error) {
	genres, err := t.store.ListGenres(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]genreItem, len(genres))
	for i, g := range genres {
		items[i] = genreItem{ID: g.ID, Name: g.Name, CreatedAt: formatTime(g.CreatedAt)}
	}
	return map[string]any{"genres": items}, nil
}

func (t *ToolSet) createGenre(ctx context.Context, userID string, args toolArgs) (any, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return nil, &invalidParamsError{message: "name is required"}
	}
	genre := &store.Genre{Owner: userID, Name: name}
	if err := t.store.CreateGenre(ctx, genre); err != nil {
		if errors.Is(err, store.ErrDuplicateGenre) {
			return nil, &invalidParamsError{message: "genre already exists"}
		}
		return nil, err
	}
	return genreItem{ID: genre.ID, Name: genre.Name, CreatedAt: formatTime(genre.CreatedAt)}, nil
}

func (t *ToolSet) updateGenre(ctx context.Context, userID string, args toolArgs) (any, error) {
	if args.ID == "" {
		return nil, &invalidParamsError{message: "id is required"}
	}
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return nil, &invalidParamsError{message: "name is required"}
	}
	genre, err := t.ensureGenre(ctx, userID, args.ID)
	if err != nil {
		return nil, err
	}
	genre.Name = name
	if err := t.store.UpdateGenre(ctx, genre); err != nil {
		if errors.Is(err, store.ErrDuplicateGenre) {
			return nil, &invalidParamsError{message: "genre already exists"}
		}
		return nil, err
	}
	return genreItem{ID: genre.ID, Name: genre.Name, UpdatedAt: formatTime(genre.UpdatedAt)}, nil
}

func (t *ToolSet) deleteGenre(ctx context.Context, userID string, args toolArgs) (any, error) {
	if args.ID == "" {
		return nil, &invalidParamsError{message: "id is required"}
	}
	genre, err := t.ensureGenre(ctx, userID, args.ID)
	if err != nil {
		return nil, err
	}

	// Feeds under the genre go first; the schema does not cascade.
	deleted, err := t.store.DeleteFeedsByGenre(ctx, userID, genre.ID)
	if err != nil {
		return nil, err
	}
	if err := t.store.DeleteGenre(ctx, genre.ID); err != nil {
		return nil, err
	}

	t.logger.Info("genre deleted", "genre_id", genre.ID, "feeds_removed", deleted)
	return successResult{Success: true}, nil
}

func (t *ToolSet) listFeeds(ctx context.Context, userID string, args toolArgs) (any, error) {
	genre, err := t.ensureGenre(ctx, userID, args.GenreID)
	if err != nil {
		return nil, err
	}
	feeds, err := t.store.ListFeeds(ctx, userID, genre.ID)
	if err != nil {
		return nil, err
	}
	items := make([]feedItem, len(feeds))
	for i, f := range feeds {
		items[i] = feedItem{ID: f.ID, URL: f.URL, Title: f.Label, CreatedAt: formatTime(f.CreatedAt)}
	}
	return map[string]any{"feeds": items}, nil
}

func (t *ToolSet) addFeed(ctx context.Context, userID string, args toolArgs) (any, error) {
	genre, err := t.ensureGenre(ctx, userID, args.GenreID)
	if err != nil {
		return nil, err
	}
	rawURL := strings.TrimSpace(args.URL)
	if err := requireHTTPURL(rawURL); err != nil {
		return nil, err
	}

	label := t.aggregator.ResolveLabel(ctx, rawURL)

	f := &store.Feed{
		Owner:   userID,
		GenreID: genre.ID,
		URL:     rawURL,
		Label:   label,
	}
	if err := t.store.CreateFeed(ctx, f); err != nil {
		if errors.Is(err, store.ErrDuplicateFeed) {
			return nil, &invalidParamsError{message: "feed already exists for this user/url"}
		}
		return nil, err
	}
	return feedItem{ID: f.ID, URL: f.URL, Title: f.Label, CreatedAt: formatTime(f.CreatedAt)}, nil
}

func (t *ToolSet) removeFeed(ctx context.Context, userID string, args toolArgs) (any, error) {
	f, err := t.ensureFeed(ctx, userID, args.ID)
	if err != nil {
		return nil, err
	}
	if err := t.store.DeleteFeed(ctx, f.ID); err != nil {
		return nil, err
	}
	return successResult{Success: true}, nil
}

func (t *ToolSet) fetchByGenre(ctx context.Context, userID string, args toolArgs) (any, error) {
	genre, err := t.ensureGenre(ctx, userID, args.GenreID)
	if err != nil {
		return nil, err
	}
	articles, err := t.aggregator.FetchByGenre(ctx, userID, genre.ID, limitArg(args.Limit))
	if err != nil {
		return nil, err
	}
	return map[string]any{"articles": articles}, nil
}

func (t *ToolSet) fetchByURL(ctx context.Context, args toolArgs) (any, error) {
	rawURL := strings.TrimSpace(args.URL)
	if err := requireHTTPURL(rawURL); err != nil {
		return nil, err
	}
	articles, err := t.aggregator.FetchByURL(ctx, rawURL, limitArg(args.Limit))
	if err != nil {
		return nil, err
	}
	return map[string]any{"articles": articles}, nil
}

func requireHTTPURL(rawURL string) error {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return &invalidParamsError{message: "url must be http(s)"}
	}
	return nil
}

func limitArg(limit *float64) int {
	if limit == nil {
		return 0
	}
	return int(*limit)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
