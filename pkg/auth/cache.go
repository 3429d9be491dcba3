package auth

import (
	"context"
	"maps"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is a concurrency-safe Provider that logs in lazily and on demand.
type Cache struct {
	login LoginFunc

	mu         sync.Mutex
	headers    map[string]string
	generation uint64

	group singleflight.Group
}

// NewCache returns an empty cache that uses login to obtain headers.
func NewCache(login LoginFunc) *Cache {
	return &Cache{login: login}
}

// Headers returns the cached headers, logging in first when the cache is
// empty or refresh is set. Callers that ask for a refresh while another
// refresh is already under way share its result.
func (c *Cache) Headers(ctx context.Context, refresh bool) (map[string]string, error) {
	c.mu.Lock()
	if !refresh && c.headers != nil {
		h := maps.Clone(c.headers)
		c.mu.Unlock()
		return h, nil
	}
	seen := c.generation
	c.mu.Unlock()

	v, err, _ := c.group.Do("login", func() (interface{}, error) {
		c.mu.Lock()
		if c.generation != seen && c.headers != nil {
			h := c.headers
			c.mu.Unlock()
			return h, nil
		}
		c.mu.Unlock()

		h, err := c.login(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.headers = h
		c.generation++
		c.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return maps.Clone(v.(map[string]string)), nil
}
