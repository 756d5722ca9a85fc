// ABOUTME: API key provider with first-read memoization
// ABOUTME: Injected into the client so tests can supply a static key

package llm

import (
	"errors"
	"sync"
)

// ErrMissingAPIKey reports that no OpenRouter key could be resolved.
var ErrMissingAPIKey = errors.New("missing OPENROUTER_API_KEY")

// KeyProvider resolves the provider API key, remembering the first
// successful lookup so repeated queries don't re-read the environment.
type KeyProvider struct {
	mu     sync.Mutex
	cached string
	lookup func() string
}

// NewKeyProvider wraps a lookup function, typically one reading the
// environment.
func NewKeyProvider(lookup func() string) *KeyProvider {
	return &KeyProvider{lookup: lookup}
}

// StaticKey returns a provider that always yields key.
func StaticKey(key string) *KeyProvider {
	return &KeyProvider{cached: key}
}

// Key returns the memoized key, invoking the lookup at most until it first
// succeeds.
func (p *KeyProvider) Key() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != "" {
		return p.cached, nil
	}
	if p.lookup != nil {
		p.cached = p.lookup()
	}
	if p.cached == "" {
		return "", ErrMissingAPIKey
	}
	return p.cached, nil
}
