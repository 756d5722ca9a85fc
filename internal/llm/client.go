// ABOUTME: OpenRouter client for chat completions and the model catalog
// ABOUTME: Resty transport, tolerant response extraction, 60s model cache

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fluxmill/feedgate/internal/cache"
	"github.com/fluxmill/feedgate/internal/clip"
)

const (
	queryTimeout  = 120 * time.Second
	modelsTimeout = 60 * time.Second
	modelCacheTTL = 60 * time.Second

	modelsCacheKey = "openrouter"
	appTitle       = "feedgate"
)

// UpstreamError reports a non-2xx response from the provider.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openrouter upstream error: status %d", e.Status)
}

// QueryResult is the normalized outcome of one chat completion.
type QueryResult struct {
	Result string `json:"result"`
	Model  string `json:"model"`
	Usage  Usage  `json:"usage"`
}

// Usage is the token accounting reported by the provider, normalized to one
// naming scheme regardless of what the provider sent.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Model is one entry of the normalized model catalog.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Client talks to an OpenRouter-compatible chat completion API.
type Client struct {
	http         *resty.Client
	baseURL      string
	keys         *KeyProvider
	defaultModel string
	clipper      *clip.Clipper
	models       *cache.Cache[[]Model]
	logger       *slog.Logger

	// Per-call deadlines; a provider that stops responding must not pin
	// the inbound request forever.
	queryTimeout  time.Duration
	modelsTimeout time.Duration
}

// NewClient wires a client against baseURL. The clipper is used to expand
// payload.articleUrl before prompt construction; models are cached briefly
// so catalog polling doesn't hammer the provider.
func NewClient(baseURL string, keys *KeyProvider, defaultModel string, clipper *clip.Clipper, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm")
	return &Client{
		http:          resty.New(),
		baseURL:       baseURL,
		keys:          keys,
		defaultModel:  defaultModel,
		clipper:       clipper,
		models:        cache.New[[]Model](modelCacheTTL, 4),
		logger:        logger,
		queryTimeout:  queryTimeout,
		modelsTimeout: modelsTimeout,
	}
}

// Close releases the model-catalog cache.
func (c *Client) Close() {
	c.models.Close()
}

// Query runs one typed operation against the provider. When the payload
// names an articleUrl on summarize or ask, the page is clipped first and its
// text substituted in; clip failures fall back silently to the caller's own
// text or context.
func (c *Client) Query(ctx context.Context, queryType QueryType, payload Payload, model string, options *Options) (*QueryResult, error) {
	apiKey, err := c.keys.Key()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	c.expandArticle(ctx, queryType, &payload)

	messages, err := BuildMessages(queryType, payload)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = c.defaultModel
	}
	body := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if options != nil {
		if options.Temperature != nil {
			body["temperature"] = *options.Temperature
		}
		if options.TopP != nil {
			body["top_p"] = *options.TopP
		}
		if options.MaxTokens != nil {
			body["max_tokens"] = *options.MaxTokens
		}
	}

	var raw map[string]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Title", appTitle).
		SetBody(body).
		SetResult(&raw).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("calling openrouter: %w", err)
	}
	if resp.IsError() {
		return nil, &UpstreamError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	result := extractResult(raw)
	if result.Model == "" {
		result.Model = model
	}
	return result, nil
}

// ListModels returns the normalized model catalog, served from a short-TTL
// cache between provider calls.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	if models, ok := c.models.Get(modelsCacheKey); ok {
		return models, nil
	}

	apiKey, err := c.keys.Key()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.modelsTimeout)
	defer cancel()

	var raw map[string]any
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetHeader("X-Title", appTitle).
		SetResult(&raw).
		Get(c.baseURL + "/models")
	if err != nil {
		return nil, fmt.Errorf("listing openrouter models: %w", err)
	}
	if resp.IsError() {
		return nil, &UpstreamError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	models := normalizeModels(raw)
	if len(models) > 0 {
		c.models.Set(modelsCacheKey, models)
	}
	return models, nil
}

// expandArticle replaces the payload text (summarize) or context (ask) with
// the clipped article when an articleUrl is given. Best effort only.
func (c *Client) expandArticle(ctx context.Context, queryType QueryType, payload *Payload) {
	if c.clipper == nil || payload.ArticleURL == "" {
		return
	}
	if queryType != TypeSummarize && queryType != TypeAsk {
		return
	}

	limits := clip.Limits{}
	if payload.Clip != nil {
		limits = clip.Limits{
			MaxBytes:     payload.Clip.MaxBytes,
			MaxChars:     payload.Clip.MaxChars,
			Timeout:      time.Duration(payload.Clip.TimeoutMs) * time.Millisecond,
			MaxRedirects: payload.Clip.MaxRedirects,
		}
	}
	clipped := c.clipper.ClipWith(ctx, payload.ArticleURL, limits)
	if clipped.Text == "" {
		c.logger.Warn("article clip empty, using provided payload", "url", payload.ArticleURL)
		return
	}

	switch queryType {
	case TypeSummarize:
		payload.Text = clipped.Text
	case TypeAsk:
		payload.Context = clipped.Text
	}
}

func normalizeModels(raw map[string]any) []Model {
	items, _ := raw["data"].([]any)
	models := make([]Model, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := stringField(entry, "id")
		name := stringField(entry, "name")
		if id == "" {
			id = name
		}
		if name == "" {
			name = id
		}
		if id == "" {
			continue
		}
		models = append(models, Model{
			ID:          id,
			Name:        name,
			Description: stringField(entry, "description"),
		})
	}
	return models
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
