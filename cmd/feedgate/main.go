// ABOUTME: Entry point for the feedgate server
// ABOUTME: Serves the JSON-RPC tool endpoint and the session REST API

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/fluxmill/feedgate/internal/api"
	"github.com/fluxmill/feedgate/internal/auth"
	"github.com/fluxmill/feedgate/internal/clip"
	"github.com/fluxmill/feedgate/internal/config"
	"github.com/fluxmill/feedgate/internal/feed"
	"github.com/fluxmill/feedgate/internal/llm"
	"github.com/fluxmill/feedgate/internal/mcp"
	"github.com/fluxmill/feedgate/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  __               _            _
 / _| ___  ___  __| | __ _  __ _| |_ ___
| |_ / _ \/ _ \/ _' |/ _' |/ _' | __/ _ \
|  _|  __/  __/ (_| | (_| | (_| | ||  __/
|_|  \___|\___|\__,_|\__, |\__,_|\__\___|
                     |___/
`

// getConfigPath returns the path to the feedgate config file.
// Priority: FEEDGATE_CONFIG env var > XDG_CONFIG_HOME/feedgate/feedgate.yaml > ~/.config/feedgate/feedgate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FEEDGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "feedgate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "feedgate", "feedgate.yaml")
}

// getDataPath returns the path to the feedgate data directory.
// Priority: XDG_DATA_HOME/feedgate > ~/.local/share/feedgate
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "feedgate")
}

func main() {
	// A local .env is convenient in development; silently absent in production.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: feedgate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the feedgate server")
		fmt.Println("  init     Create a new config file")
		fmt.Println("  health   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting feedgate",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	sessions := auth.NewJWTSessionVerifier([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionAudiences)
	resolver := auth.NewResolver(s, sessions, logger)
	issuer := auth.NewTokenIssuer(s)

	fetcher := feed.NewFetcher(cfg.Feeds.FetchTimeout)
	aggregator := feed.NewAggregator(s, fetcher,
		cfg.Feeds.FetchTimeout, cfg.Feeds.LabelTimeout, cfg.Feeds.DefaultArticleLimit, logger)

	clipper := clip.New(clip.Limits{
		MaxBytes:     cfg.Clip.MaxBytes,
		MaxChars:     cfg.Clip.MaxChars,
		Timeout:      cfg.Clip.Timeout,
		MaxRedirects: cfg.Clip.MaxRedirects,
	}, logger)

	keys := llm.NewKeyProvider(func() string {
		if cfg.LLM.APIKey != "" {
			return cfg.LLM.APIKey
		}
		return os.Getenv("OPENROUTER_API_KEY")
	})
	llmClient := llm.NewClient(cfg.LLM.BaseURL, keys, cfg.LLM.DefaultModel, clipper, logger)
	defer llmClient.Close()

	tools := mcp.NewToolSet(s, aggregator, logger)
	mcpServer, err := mcp.NewServer(mcp.Config{
		Resolver: resolver,
		Tools:    tools,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating tool server: %w", err)
	}

	restHandler := api.NewHandler(api.Config{
		Store:    s,
		Issuer:   issuer,
		Resolver: resolver,
		LLM:      llmClient,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mcpServer.RegisterRoutes(mux)
	restHandler.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runInit writes a starter config file with a random session secret.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "feedgate.db")

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating session secret: %w", err)
	}
	sessionSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# feedgate configuration
# Generated by feedgate init

server:
  http_addr: "localhost:8090"

database:
  path: "%s"

auth:
  session_secret: "%s"

feeds:
  fetch_timeout: "20s"
  label_timeout: "15s"
  default_article_limit: 50

llm:
  base_url: "https://openrouter.ai/api/v1"
  api_key: "${OPENROUTER_API_KEY}"
  default_model: "openrouter/auto"

logging:
  level: "info"
  format: "text"
`, dbPath, sessionSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("To start the server:")
	fmt.Println("  feedgate serve")

	return nil
}
