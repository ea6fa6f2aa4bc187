// Package auth holds the API key check used on the websocket endpoint.
package auth

import (
	"strings"
	"sync"
)

// APIKeyAuth provides a simple API key authentication
type APIKeyAuth struct {
	mu        sync.RWMutex
	validKeys map[string]struct{}
}

// NewAPIKeyAuth creates a new API key authentication middleware. Blank keys
// are ignored.
func NewAPIKeyAuth(keys []string) *APIKeyAuth {
	a := &APIKeyAuth{validKeys: make(map[string]struct{})}
	for _, key := range keys {
		a.AddKey(key)
	}

	return a
}

// AddKey adds a new valid API key
func (a *APIKeyAuth) AddKey(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.validKeys[key] = struct{}{}
}

// Enabled reports whether any key is configured. With no keys every request
// is let through.
func (a *APIKeyAuth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.validKeys) > 0
}

// IsValidKey checks if a key is valid
func (a *APIKeyAuth) IsValidKey(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, valid := a.validKeys[key]
	return valid
}
