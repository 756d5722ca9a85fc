// Package llm bridges typed summarize/translate/ask operations to an
// OpenRouter-compatible completion API. It owns prompt construction, the
// article clip expansion, tolerant response decoding, and a short-lived
// model-catalog cache.
package llm
