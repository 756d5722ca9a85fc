// Package config handles configuration loading for feedgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  session_secret: "${FEEDGATE_SESSION_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	feeds:
//	  fetch_timeout: "20s"
//	  label_timeout: "15s"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8090"
//
// Database:
//
//	database:
//	  path: "/var/lib/feedgate/feedgate.db"
//
// Authentication:
//
//	auth:
//	  session_secret: "${FEEDGATE_SESSION_SECRET}"
//	  session_audiences: ["feedgate", "users"]
//
// Feeds and aggregation:
//
//	feeds:
//	  fetch_timeout: "20s"
//	  label_timeout: "15s"
//	  default_article_limit: 50
//
// Article clipping:
//
//	clip:
//	  max_bytes: 524288
//	  max_chars: 12000
//	  max_redirects: 3
//	  timeout: "12s"
//
// LLM bridge:
//
//	llm:
//	  base_url: "https://openrouter.ai/api/v1"
//	  api_key: "${OPENROUTER_API_KEY}"
//	  default_model: "openrouter/auto"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
