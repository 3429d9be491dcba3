//go:generate mockgen -destination=./mocks/orchestrator.go . Catalog,HookRunner

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/cperrin88/grinder/pkg/download"
	"github.com/cperrin88/grinder/pkg/hooks"
	"github.com/cperrin88/grinder/pkg/model"
	"github.com/cperrin88/grinder/pkg/prune"
	"github.com/cperrin88/grinder/pkg/repodata"
)

// Catalog is the subset of the catalog client used by the orchestrator.
type Catalog interface {
	CheckAuth(ctx context.Context) error
	ChannelPackages(ctx context.Context, label string) ([]model.PackageItem, error)
	KickstartFiles(ctx context.Context, label string) ([]model.PackageItem, error)
	Repodata(ctx context.Context, label, name string) ([]byte, error)
}

// HookRunner runs user scripts before and after a channel sync.
type HookRunner interface {
	Execute(hookType hooks.HookType, ctx hooks.HookContext) error
}

// FetcherFactory builds the fetcher of one pool worker for a save path.
type FetcherFactory func(savePath string, worker int) download.Fetcher

// Orchestrator ties the catalog, the fetch pool and the pruner together for
// one channel at a time.
type Orchestrator struct {
	Catalog  Catalog
	Fetchers FetcherFactory
	Scripts  HookRunner // optional
	Hooks    Hooks      // Hooks for progress and event notifications

	mu   sync.Mutex
	pool *download.Pool
}

// State is a step of a sync run.
type State int

// Sync states in the order a successful run passes them.
const (
	StateIdle State = iota
	StateMetadataFetched
	StateSelecting
	StateFetching
	StatePruning
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "metadata-fetched", "selecting", "fetching", "pruning", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Event represents a simple progress notification.
type Event struct {
	Phase State
	RunID string
	Msg   string
	// Total is the number of queued items; set when fetching starts.
	Total int
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
	// OnItem is called from worker goroutines after each item.
	OnItem func(item model.PackageItem, res model.FetchResult)
}

// Options control a sync run.
type Options struct {
	SavePath string
	Workers  int
	// FilterLatest keeps only the newest build of every name.arch.
	FilterLatest bool
	RemoveOld    bool
	KeepOld      int
	// PruneByHeader identifies files from their RPM headers when pruning.
	PruneByHeader bool
	// SkipRepodata disables the comps/updateinfo download.
	SkipRepodata bool
}

// Result is what a sync run hands back to its caller.
type Result struct {
	RunID    string
	State    State
	Report   model.SyncReport
	Elapsed  time.Duration
	Stopped  bool
	Pruned   prune.Result
	Repodata repodata.Files
}
