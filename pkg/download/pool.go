package download

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cperrin88/grinder/internal/logger"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/model"
)

// ResultFunc observes every finished item. It is called from worker
// goroutines and must be safe for concurrent use.
type ResultFunc func(item model.PackageItem, res model.FetchResult)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithResultFunc registers fn to be called after each item.
func WithResultFunc(fn ResultFunc) PoolOption {
	return func(p *Pool) { p.onResult = fn }
}

// Pool runs a fixed number of workers over one shared queue. Each worker owns
// the fetcher its factory returned and keeps private counters, which are
// merged into a single report once every worker has exited.
type Pool struct {
	size     int
	factory  FetcherFactory
	queue    Queue
	onResult ResultFunc

	stopped atomic.Bool

	mu      sync.Mutex
	started bool
	group   errgroup.Group
	tallies []*model.Tally

	waitOnce sync.Once
	report   model.SyncReport
}

// NewPool creates a pool of size workers. Sizes below one are raised to one.
func NewPool(size int, factory FetcherFactory, opts ...PoolOption) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size, factory: factory}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit enqueues items. It may be called before or after Start.
func (p *Pool) Submit(items ...model.PackageItem) {
	p.queue.Push(items...)
}

// Pending returns the number of items not yet taken by a worker.
func (p *Pool) Pending() int {
	return p.queue.Len()
}

// Start launches the workers. A pool can be started once.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return pkgerrors.ErrPoolStarted
	}
	p.started = true

	p.tallies = make([]*model.Tally, p.size)
	for n := 0; n < p.size; n++ {
		tally := model.NewTally()
		p.tallies[n] = tally
		fetcher := p.factory(n)
		worker := n
		p.group.Go(func() error {
			p.work(ctx, worker, fetcher, tally)
			return nil
		})
	}
	return nil
}

// Stop keeps workers from taking further items. Fetches already running,
// retries included, finish normally.
func (p *Pool) Stop() {
	p.stopped.Store(true)
}

// Stopped reports whether Stop was called.
func (p *Pool) Stopped() bool {
	return p.stopped.Load()
}

// Wait blocks until every worker has exited and returns the merged report.
// Later calls return the same report.
func (p *Pool) Wait() (model.SyncReport, error) {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return model.SyncReport{}, pkgerrors.ErrPoolNotStarted
	}

	p.waitOnce.Do(func() {
		_ = p.group.Wait()
		p.report = model.MergeTallies(p.tallies...)
	})
	return p.report, nil
}

func (p *Pool) work(ctx context.Context, worker int, fetcher Fetcher, tally *model.Tally) {
	fields := logger.Fields{"worker": worker}
	for !p.stopped.Load() && ctx.Err() == nil {
		item, ok := p.queue.TryPop()
		if !ok {
			break
		}
		res := runFetch(ctx, fetcher, item)
		tally.Add(item, res)
		logger.Debug("item finished", fields.With(logger.Fields{
			"item":     item.String(),
			"outcome":  string(res.Outcome),
			"attempts": res.Attempts,
		}))
		if p.onResult != nil {
			p.onResult(item, res)
		}
	}
	logger.Debug("worker exiting", fields)
}

// runFetch shields the worker loop from a fetcher that panics.
func runFetch(ctx context.Context, fetcher Fetcher, item model.PackageItem) (res model.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = model.FetchResult{
				Outcome:  model.OutcomeError,
				Attempts: 1,
				Err:      fmt.Errorf("%w: fetcher panic: %v", pkgerrors.ErrDownloadFailed, r),
			}
		}
	}()
	return fetcher.Fetch(ctx, item)
}
