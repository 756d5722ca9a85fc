// ABOUTME: Configuration loading and parsing for feedgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete feedgate configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Clip     ClipConfig     `yaml:"clip"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
// SessionAudiences lists the accepted "aud" claim values for session JWTs,
// checked in order; the external session issuer has used several over time.
type AuthConfig struct {
	SessionSecret    string   `yaml:"session_secret"`
	SessionAudiences []string `yaml:"session_audiences"`
}

// FeedsConfig holds feed fetching and aggregation configuration
type FeedsConfig struct {
	FetchTimeout time.Duration `yaml:"-"`
	LabelTimeout time.Duration `yaml:"-"`

	DefaultArticleLimit int `yaml:"default_article_limit"`

	// Raw string values for YAML unmarshaling
	FetchTimeoutRaw string `yaml:"fetch_timeout"`
	LabelTimeoutRaw string `yaml:"label_timeout"`
}

// ClipConfig holds article fetch-and-clip defaults. Values outside the safe
// ranges are clamped at use time, not here. MaxRedirects is a pointer so an
// explicit 0 (no redirects) is distinct from unset.
type ClipConfig struct {
	MaxBytes     int           `yaml:"max_bytes"`
	MaxChars     int           `yaml:"max_chars"`
	MaxRedirects *int          `yaml:"max_redirects"`
	Timeout      time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LLMConfig holds OpenRouter connection configuration
type LLMConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves fields unset.
const (
	DefaultHTTPAddr     = ":8090"
	DefaultFetchTimeout = 20 * time.Second
	DefaultLabelTimeout = 15 * time.Second
	DefaultArticleLimit = 50
	DefaultLLMBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel        = "openrouter/auto"

	// maxSessionAudiences bounds how many audience variants the resolver
	// will try per request.
	maxSessionAudiences = 3
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses raw YAML configuration bytes, expands environment variables,
// applies defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Feeds.FetchTimeout == 0 {
		c.Feeds.FetchTimeout = DefaultFetchTimeout
	}
	if c.Feeds.LabelTimeout == 0 {
		c.Feeds.LabelTimeout = DefaultLabelTimeout
	}
	if c.Feeds.DefaultArticleLimit <= 0 {
		c.Feeds.DefaultArticleLimit = DefaultArticleLimit
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultLLMBaseURL
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = DefaultModel
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if len(c.Auth.SessionAudiences) == 0 {
		// Audience variants the external session issuer has stamped into
		// tokens across releases; all remain accepted for compatibility.
		c.Auth.SessionAudiences = []string{"feedgate", "users", "_pb_users_auth_"}
	}
	if len(c.Auth.SessionAudiences) > maxSessionAudiences {
		c.Auth.SessionAudiences = c.Auth.SessionAudiences[:maxSessionAudiences]
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Feeds.FetchTimeoutRaw != "" {
		cfg.Feeds.FetchTimeout, err = time.ParseDuration(cfg.Feeds.FetchTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing fetch_timeout %q: %w", cfg.Feeds.FetchTimeoutRaw, err)
		}
	}

	if cfg.Feeds.LabelTimeoutRaw != "" {
		cfg.Feeds.LabelTimeout, err = time.ParseDuration(cfg.Feeds.LabelTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing label_timeout %q: %w", cfg.Feeds.LabelTimeoutRaw, err)
		}
	}

	if cfg.Clip.TimeoutRaw != "" {
		cfg.Clip.Timeout, err = time.ParseDuration(cfg.Clip.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing clip timeout %q: %w", cfg.Clip.TimeoutRaw, err)
		}
	}

	return nil
}
