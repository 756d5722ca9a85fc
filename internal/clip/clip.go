// ABOUTME: Fetch-and-clip pipeline turning an article URL into bounded plain text
// ABOUTME: Hard caps on bytes, characters, redirects, and wall-clock time

package clip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Safe operating ranges. Caller-supplied values are clamped into these
// regardless of configuration, so a bad config cannot disable the caps.
const (
	MinBytes     = 64 * 1024
	MaxBytes     = 1024 * 1024
	DefaultBytes = 512 * 1024

	MinChars     = 2000
	MaxChars     = 20000
	DefaultChars = 12000

	MinTimeout     = 3 * time.Second
	MaxTimeout     = 20 * time.Second
	DefaultTimeout = 12 * time.Second

	MinRedirects     = 0
	MaxRedirects     = 5
	DefaultRedirects = 3
)

const clipUserAgent = "feedgate/1.0"

// Limits are the effective bounds for one clip operation. MaxRedirects is a
// pointer because zero hops is a valid, in-range setting; nil means unset.
type Limits struct {
	MaxBytes     int
	MaxChars     int
	Timeout      time.Duration
	MaxRedirects *int
}

// Clamp returns a copy of l with every field forced into its safe range.
// Zero values (nil for MaxRedirects) take the defaults.
func (l Limits) Clamp() Limits {
	l.MaxBytes = clampInt(l.MaxBytes, MinBytes, MaxBytes, DefaultBytes)
	l.MaxChars = clampInt(l.MaxChars, MinChars, MaxChars, DefaultChars)
	redirects := DefaultRedirects
	if l.MaxRedirects != nil {
		redirects = *l.MaxRedirects
		if redirects < MinRedirects {
			redirects = MinRedirects
		}
		if redirects > MaxRedirects {
			redirects = MaxRedirects
		}
	}
	l.MaxRedirects = &redirects
	l.Timeout = clampDuration(l.Timeout, MinTimeout, MaxTimeout, DefaultTimeout)
	return l
}

func clampInt(v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Result is the outcome of one clip operation. Text is empty when the page
// was unreachable or not HTML; that is not an error.
type Result struct {
	URL       string `json:"url"`
	FinalURL  string `json:"finalUrl"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// Clipper fetches article pages and extracts bounded plain text.
type Clipper struct {
	client *http.Client
	limits Limits
	logger *slog.Logger
}

// New returns a clipper with defaults as clamped limits. The HTTP client
// never follows redirects itself; the clipper walks them so the hop count
// is enforced exactly.
func New(limits Limits, logger *slog.Logger) *Clipper {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "clip")
	return &Clipper{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limits: limits.Clamp(),
		logger: logger,
	}
}

// Clip fetches rawURL and returns its readable text, bounded by the
// clipper's limits. Failures degrade to an empty-text result rather than an
// error: the clip is an enrichment, never a gate.
func (c *Clipper) Clip(ctx context.Context, rawURL string) Result {
	return c.ClipWith(ctx, rawURL, Limits{})
}

// ClipWith runs one clip with request-scoped limits. Zero fields inherit
// the clipper's configured limits; everything is clamped either way.
func (c *Clipper) ClipWith(ctx context.Context, rawURL string, limits Limits) Result {
	if limits.MaxBytes == 0 {
		limits.MaxBytes = c.limits.MaxBytes
	}
	if limits.MaxChars == 0 {
		limits.MaxChars = c.limits.MaxChars
	}
	if limits.Timeout == 0 {
		limits.Timeout = c.limits.Timeout
	}
	if limits.MaxRedirects == nil {
		limits.MaxRedirects = c.limits.MaxRedirects
	}
	limits = limits.Clamp()

	result := Result{URL: rawURL, FinalURL: rawURL}

	ctx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	body, finalURL, err := c.fetch(ctx, rawURL, limits)
	if err != nil {
		c.logger.Debug("clip failed", "url", rawURL, "error", err)
		return result
	}
	result.FinalURL = finalURL

	text := htmlToText(body)
	runes := []rune(text)
	if len(runes) > limits.MaxChars {
		text = string(runes[:limits.MaxChars])
		result.Truncated = true
	}
	result.Text = text
	return result
}

// fetch walks the redirect chain by hand, resolving each Location against
// the current URL, up to the hop limit. Only 2xx text/html responses yield
// a body.
func (c *Clipper) fetch(ctx context.Context, rawURL string, limits Limits) (string, string, error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing url: %w", err)
	}

	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.String(), nil)
		if err != nil {
			return "", "", fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("User-Agent", clipUserAgent)
		req.Header.Set("Accept", "text/html, application/xhtml+xml")

		resp, err := c.client.Do(req)
		if err != nil {
			return "", "", fmt.Errorf("fetching page: %w", err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()
			if location == "" {
				return "", "", fmt.Errorf("redirect without location from %s", current)
			}
			if hop >= *limits.MaxRedirects {
				return "", "", fmt.Errorf("redirect limit %d exceeded", *limits.MaxRedirects)
			}
			next, err := current.Parse(location)
			if err != nil {
				return "", "", fmt.Errorf("resolving redirect %q: %w", location, err)
			}
			current = next
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		contentType := resp.Header.Get("Content-Type")
		if !isHTMLContentType(contentType) {
			resp.Body.Close()
			return "", "", fmt.Errorf("unsupported content type %q", contentType)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limits.MaxBytes)))
		resp.Body.Close()
		if err != nil {
			return "", "", fmt.Errorf("reading body: %w", err)
		}
		return string(body), current.String(), nil
	}
}

func isHTMLContentType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
