// Package http builds the HTTP client shared by the catalog client and the
// content fetchers.
package http

import (
	"net"
	"net/http"
	"time"
)

// Options configure NewHTTPClient.
type Options struct {
	// UserAgent is set on requests that carry none.
	UserAgent string
	// MaxConnsPerHost sizes the idle pool; use the worker count so every
	// worker keeps its connection between items.
	MaxConnsPerHost int
	// DialTimeout bounds connection setup. Zero uses 30s.
	DialTimeout time.Duration
}

const defaultDialTimeout = 30 * time.Second

// NewHTTPClient creates a client without an overall timeout. Per-request
// deadlines come from the caller's context.
func NewHTTPClient(opts Options) *http.Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "grinder/1.0"
	}
	if opts.MaxConnsPerHost < 1 {
		opts.MaxConnsPerHost = 1
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.MaxIdleConnsPerHost = opts.MaxConnsPerHost
	// Responses are decompressed by hand where the catalog gzips them.
	transport.DisableCompression = true

	return &http.Client{
		Transport: &userAgentTransport{base: transport, userAgent: opts.UserAgent},
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}
