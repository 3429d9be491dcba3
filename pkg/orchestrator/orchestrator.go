package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/download"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/fsutil"
	"github.com/cperrin88/grinder/pkg/hooks"
	"github.com/cperrin88/grinder/pkg/model"
	"github.com/cperrin88/grinder/pkg/prune"
	"github.com/cperrin88/grinder/pkg/repodata"
	"github.com/cperrin88/grinder/pkg/selector"
)

const (
	kindPackages   = "packages"
	kindKickstarts = "kickstarts"
)

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// run carries the state of one sync invocation.
type run struct {
	id     string
	label  string
	kind   string
	opts   Options
	start  time.Time
	state  State
	fields logger.Fields
}

func (r *run) result() Result {
	return Result{RunID: r.id, State: r.state}
}

func (o *Orchestrator) enter(r *run, s State, msg string, total int) {
	r.state = s
	logger.Debug("sync state changed", r.fields.With(logger.Fields{"state": s.String()}))
	emit(o.Hooks, Event{Phase: s, RunID: r.id, Msg: msg, Total: total})
}

func (o *Orchestrator) fail(r *run, res Result, err error) (Result, error) {
	o.enter(r, StateFailed, err.Error(), 0)
	res.State = StateFailed
	res.Elapsed = time.Since(r.start)
	return res, err
}

// SyncPackages mirrors the packages of one channel into opts.SavePath.
func (o *Orchestrator) SyncPackages(ctx context.Context, label string, opts Options) (Result, error) {
	return o.sync(ctx, label, kindPackages, opts)
}

// SyncKickstarts mirrors the kickstart trees of one channel. Every file is
// fetched; there is no version selection and no pruning.
func (o *Orchestrator) SyncKickstarts(ctx context.Context, label string, opts Options) (Result, error) {
	return o.sync(ctx, label, kindKickstarts, opts)
}

func (o *Orchestrator) sync(ctx context.Context, label, kind string, opts Options) (Result, error) {
	r := &run{
		id:    uuid.NewString(),
		label: label,
		kind:  kind,
		opts:  opts,
		start: time.Now(),
	}
	r.fields = logger.Fields{"run": r.id, "channel": label, "kind": kind}
	res := r.result()

	if label == "" {
		return o.fail(r, res, pkgerrors.ErrNoChannelLabel)
	}
	if opts.SavePath == "" {
		return o.fail(r, res, fmt.Errorf("%w: save path is empty", pkgerrors.ErrConfigValidation))
	}
	if o.Catalog == nil || o.Fetchers == nil {
		return o.fail(r, res, fmt.Errorf("orchestrator is not configured"))
	}

	lock, err := fsutil.LockDir(opts.SavePath)
	if err != nil {
		return o.fail(r, res, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release save path lock", r.fields.With(logger.Fields{"error": err.Error()}))
		}
	}()

	if err := o.Catalog.CheckAuth(ctx); err != nil {
		if !errors.Is(err, pkgerrors.ErrAuthenticationRejected) {
			err = fmt.Errorf("%w: %w", pkgerrors.ErrAuthenticationRejected, err)
		}
		return o.fail(r, res, err)
	}

	if err := o.script(hooks.PreSync, r, res); err != nil {
		return o.fail(r, res, err)
	}

	items, err := o.metadata(ctx, r)
	if err != nil {
		return o.fail(r, res, err)
	}
	o.enter(r, StateMetadataFetched, fmt.Sprintf("%d candidates", len(items)), 0)

	o.enter(r, StateSelecting, "", 0)
	work := o.selectWork(r, items)
	logger.Info("selected items", r.fields.With(logger.Fields{"candidates": len(items), "selected": len(work)}))

	report, stopped, err := o.fetch(ctx, r, work)
	res.Report = report
	res.Stopped = stopped
	if err != nil {
		return o.fail(r, res, err)
	}

	if kind == kindPackages && !stopped {
		if !opts.SkipRepodata {
			files, err := repodata.Fetch(ctx, o.Catalog, label, opts.SavePath)
			if err != nil {
				return o.fail(r, res, err)
			}
			res.Repodata = files
		}
		if opts.RemoveOld {
			o.enter(r, StatePruning, "", 0)
			pruner := prune.Pruner{KeepOld: opts.KeepOld, UseHeaders: opts.PruneByHeader}
			pruned, err := pruner.Prune(opts.SavePath)
			if err != nil {
				return o.fail(r, res, err)
			}
			res.Pruned = pruned
		}
	}

	o.enter(r, StateDone, "", 0)
	res.State = StateDone
	res.Elapsed = time.Since(r.start)
	logger.Info("sync finished", r.fields.With(logger.Fields{
		"successes": report.Successes,
		"downloads": report.Downloads,
		"errors":    report.Errors,
		"stopped":   stopped,
		"elapsed":   res.Elapsed.String(),
	}))

	if err := o.script(hooks.PostSync, r, res); err != nil {
		return res, err
	}
	return res, nil
}

func (o *Orchestrator) metadata(ctx context.Context, r *run) ([]model.PackageItem, error) {
	if r.kind == kindKickstarts {
		return o.Catalog.KickstartFiles(ctx, r.label)
	}
	return o.Catalog.ChannelPackages(ctx, r.label)
}

func (o *Orchestrator) selectWork(r *run, items []model.PackageItem) []model.PackageItem {
	if r.kind == kindPackages {
		return selector.WorkList(selector.Select(items, r.opts.FilterLatest))
	}
	work := append([]model.PackageItem(nil), items...)
	sort.SliceStable(work, func(i, j int) bool { return work[i].FileName < work[j].FileName })
	return work
}

// fetch runs the selected items through a fresh pool and blocks until every
// worker has exited.
func (o *Orchestrator) fetch(ctx context.Context, r *run, work []model.PackageItem) (model.SyncReport, bool, error) {
	savePath := r.opts.SavePath
	pool := download.NewPool(r.opts.Workers, func(n int) download.Fetcher {
		return o.Fetchers(savePath, n)
	}, download.WithResultFunc(o.Hooks.OnItem))
	pool.Submit(work...)

	o.mu.Lock()
	o.pool = pool
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.pool = nil
		o.mu.Unlock()
	}()

	o.enter(r, StateFetching, "", len(work))
	if err := pool.Start(ctx); err != nil {
		return model.SyncReport{}, false, err
	}
	report, err := pool.Wait()
	return report, pool.Stopped(), err
}

// Stop asks the running pool to stop taking new items. Fetches in progress
// finish. Outside the fetching step it does nothing.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	pool := o.pool
	o.mu.Unlock()
	if pool == nil {
		return
	}
	logger.Warn("stop requested, waiting for running downloads")
	pool.Stop()
}

func (o *Orchestrator) script(hookType hooks.HookType, r *run, res Result) error {
	if o.Scripts == nil {
		return nil
	}
	return o.Scripts.Execute(hookType, hooks.HookContext{
		Channel:  r.label,
		SavePath: r.opts.SavePath,
		Kind:     r.kind,
		Report:   res.Report,
		Stopped:  res.Stopped,
		Vars:     map[string]interface{}{"runID": r.id},
	})
}
