//go:generate mockgen -destination=./mocks/download.go . Fetcher
package download

import (
	"context"

	"github.com/cperrin88/grinder/pkg/model"
)

// Fetcher turns one catalog item into one final outcome. Implementations
// retry internally and never return transport or disk failures any other way
// than through the result.
type Fetcher interface {
	Fetch(ctx context.Context, item model.PackageItem) model.FetchResult
}

// FetcherFactory builds the fetcher owned by worker n of a pool.
type FetcherFactory func(n int) Fetcher

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, item model.PackageItem) model.FetchResult

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, item model.PackageItem) model.FetchResult {
	return f(ctx, item)
}
