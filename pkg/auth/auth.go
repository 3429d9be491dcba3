// Package auth supplies catalog session headers to fetchers.
//
//go:generate mockgen -destination=./mocks/auth.go . Provider
package auth

import (
	"context"
	"fmt"
	"net/http"
)

// Provider hands out the session headers a fetch request must carry.
// With refresh set the cached headers are discarded and a new login is made.
type Provider interface {
	Headers(ctx context.Context, refresh bool) (map[string]string, error)
}

// LoginFunc performs a login against the catalog and returns session headers.
type LoginFunc func(ctx context.Context) (map[string]string, error)

// HeaderAuth applies a fixed set of headers to a request.
type HeaderAuth struct {
	Headers map[string]string
}

// Apply adds the headers to the HTTP request.
func (h HeaderAuth) Apply(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// Scope decides how many credential caches a pool uses.
type Scope string

const (
	// ScopeWorker gives every worker its own cache. Each worker logs in on
	// its first fetch, so the catalog sees one login per worker and one more
	// per forced refresh.
	ScopeWorker Scope = "worker"
	// ScopeShared gives all workers one cache. Concurrent refreshes collapse
	// into a single login.
	ScopeShared Scope = "shared"
)

// ParseScope validates a scope name. The empty string means ScopeWorker.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeWorker:
		return ScopeWorker, nil
	case ScopeShared:
		return ScopeShared, nil
	default:
		return "", fmt.Errorf("unknown credential scope %q", s)
	}
}

// ProviderFactory returns the provider for worker number n.
type ProviderFactory func(n int) Provider

// NewProviderFactory builds providers for a pool according to scope.
func NewProviderFactory(scope Scope, login LoginFunc) ProviderFactory {
	if scope == ScopeShared {
		shared := NewCache(login)
		return func(int) Provider { return shared }
	}
	return func(int) Provider { return NewCache(login) }
}
