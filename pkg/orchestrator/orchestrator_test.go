package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cperrin88/grinder/pkg/download"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/fsutil"
	"github.com/cperrin88/grinder/pkg/hooks"
	"github.com/cperrin88/grinder/pkg/model"
	ocmocks "github.com/cperrin88/grinder/pkg/orchestrator/mocks"
	"github.com/cperrin88/grinder/pkg/repodata"
)

const channel = "rhel-x86_64-server-5"

func pkg(name, version, release, arch string) model.PackageItem {
	return model.PackageItem{
		Name:     name,
		Version:  version,
		Release:  release,
		Arch:     arch,
		FileName: model.PackageFileName(name, version, release, arch),
	}
}

// recorder is a fetcher factory that remembers what was fetched.
type recorder struct {
	mu      sync.Mutex
	fetched []string
	dirs    map[string]bool
	outcome model.Outcome
	onFetch func()
}

func newRecorder(outcome model.Outcome) *recorder {
	return &recorder{outcome: outcome, dirs: map[string]bool{}}
}

func (r *recorder) factory(savePath string, _ int) download.Fetcher {
	r.mu.Lock()
	r.dirs[savePath] = true
	r.mu.Unlock()
	return download.FetcherFunc(func(_ context.Context, item model.PackageItem) model.FetchResult {
		r.mu.Lock()
		r.fetched = append(r.fetched, item.FileName)
		r.mu.Unlock()
		if r.onFetch != nil {
			r.onFetch()
		}
		return model.FetchResult{Outcome: r.outcome, Attempts: 1}
	})
}

func (r *recorder) files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.fetched...)
	sort.Strings(out)
	return out
}

func noRepodata(cat *ocmocks.MockCatalog) {
	cat.EXPECT().Repodata(gomock.Any(), channel, gomock.Any()).Return(nil, pkgerrors.ErrRepodataNotFound).Times(2)
}

func TestSyncPackages_NoLabel(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	rec := newRecorder(model.OutcomeDownloaded)

	var phases []State
	orch := &Orchestrator{Catalog: cat, Fetchers: rec.factory, Hooks: Hooks{OnEvent: func(e Event) { phases = append(phases, e.Phase) }}}

	res, err := orch.SyncPackages(context.Background(), "", Options{SavePath: t.TempDir(), Workers: 2})
	require.ErrorIs(t, err, pkgerrors.ErrNoChannelLabel)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, []State{StateFailed}, phases)
	assert.Empty(t, rec.files())
}

func TestSyncPackages_AuthRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "rejected", err: pkgerrors.Wrap(pkgerrors.ErrAuthenticationRejected, "check returned 0")},
		{name: "transport failure", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			cat := ocmocks.NewMockCatalog(ctrl)
			cat.EXPECT().CheckAuth(gomock.Any()).Return(tt.err)

			orch := &Orchestrator{Catalog: cat, Fetchers: newRecorder(model.OutcomeNoop).factory}
			res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: t.TempDir()})
			require.ErrorIs(t, err, pkgerrors.ErrAuthenticationRejected)
			assert.Equal(t, StateFailed, res.State)
		})
	}
}

func TestSyncPackages_FilterLatest(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	dir := t.TempDir()

	gomock.InOrder(
		cat.EXPECT().CheckAuth(gomock.Any()).Return(nil),
		cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return([]model.PackageItem{
			pkg("A", "1.0", "1", "x86_64"),
			pkg("A", "2.0", "1", "x86_64"),
			pkg("B", "1.0", "1", "noarch"),
		}, nil),
	)
	noRepodata(cat)

	rec := newRecorder(model.OutcomeDownloaded)
	var (
		mu     sync.Mutex
		phases []State
		total  int
		items  int
	)
	orch := &Orchestrator{
		Catalog:  cat,
		Fetchers: rec.factory,
		Hooks: Hooks{
			OnEvent: func(e Event) {
				phases = append(phases, e.Phase)
				if e.Phase == StateFetching {
					total = e.Total
				}
			},
			OnItem: func(model.PackageItem, model.FetchResult) {
				mu.Lock()
				items++
				mu.Unlock()
			},
		},
	}

	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: dir, Workers: 3, FilterLatest: true})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Stopped)
	assert.Equal(t, 2, res.Report.Successes)
	assert.Equal(t, 2, res.Report.Downloads)
	assert.Equal(t, 0, res.Report.Errors)
	assert.Equal(t, []string{"A-2.0-1.x86_64.rpm", "B-1.0-1.noarch.rpm"}, rec.files())
	assert.Equal(t, map[string]bool{dir: true}, rec.dirs)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, items)
	assert.Equal(t, []State{StateMetadataFetched, StateSelecting, StateFetching, StateDone}, phases)
	assert.Equal(t, repodata.Files{}, res.Repodata)
}

func TestSyncPackages_AllVersionsAndErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return([]model.PackageItem{
		pkg("A", "1.0", "1", "x86_64"),
		pkg("A", "2.0", "1", "x86_64"),
	}, nil)
	noRepodata(cat)

	rec := newRecorder(model.OutcomeChecksumMismatch)
	orch := &Orchestrator{Catalog: cat, Fetchers: rec.factory}

	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: t.TempDir(), Workers: 2})
	require.NoError(t, err, "per-item failures do not fail the sync")
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Report.Errors)
	assert.Len(t, res.Report.Failed, 2)
	assert.Len(t, rec.files(), 2)
}

func TestSyncPackages_MetadataError(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return(nil, pkgerrors.ErrCatalogFault)

	orch := &Orchestrator{Catalog: cat, Fetchers: newRecorder(model.OutcomeNoop).factory}
	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: t.TempDir()})
	require.ErrorIs(t, err, pkgerrors.ErrCatalogFault)
	assert.Equal(t, StateFailed, res.State)
}

func TestSyncPackages_RemoveOld(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	dir := t.TempDir()
	for _, name := range []string{"A-1.0-1.x86_64.rpm", "A-2.0-1.x86_64.rpm", "A-3.0-1.x86_64.rpm"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("rpm"), 0o644))
	}

	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return([]model.PackageItem{pkg("A", "3.0", "1", "x86_64")}, nil)
	noRepodata(cat)

	var phases []State
	orch := &Orchestrator{
		Catalog:  cat,
		Fetchers: newRecorder(model.OutcomeNoop).factory,
		Hooks:    Hooks{OnEvent: func(e Event) { phases = append(phases, e.Phase) }},
	}
	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: dir, Workers: 1, RemoveOld: true, KeepOld: 1})
	require.NoError(t, err)

	assert.Contains(t, phases, StatePruning)
	assert.Equal(t, []string{filepath.Join(dir, "A-1.0-1.x86_64.rpm")}, res.Pruned.Removed)
	assert.NoFileExists(t, filepath.Join(dir, "A-1.0-1.x86_64.rpm"))
	assert.FileExists(t, filepath.Join(dir, "A-2.0-1.x86_64.rpm"))
	assert.FileExists(t, filepath.Join(dir, "A-3.0-1.x86_64.rpm"))
}

func TestSyncPackages_Repodata(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	dir := t.TempDir()

	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return(nil, nil)
	cat.EXPECT().Repodata(gomock.Any(), channel, repodata.CompsFile).Return([]byte("<comps/>"), nil)
	cat.EXPECT().Repodata(gomock.Any(), channel, repodata.UpdateInfoGzFile).Return(nil, pkgerrors.ErrRepodataNotFound)

	orch := &Orchestrator{Catalog: cat, Fetchers: newRecorder(model.OutcomeNoop).factory}
	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, repodata.CompsFile), res.Repodata.Comps)
	assert.Empty(t, res.Repodata.UpdateInfo)
}

func TestStop_BeforeFetchingIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return([]model.PackageItem{
		pkg("A", "1.0", "1", "x86_64"),
		pkg("B", "1.0", "1", "x86_64"),
	}, nil)

	rec := newRecorder(model.OutcomeNoop)
	orch := &Orchestrator{Catalog: cat, Fetchers: rec.factory}
	orch.Stop()

	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: t.TempDir(), SkipRepodata: true})
	require.NoError(t, err)
	assert.False(t, res.Stopped)
	assert.Equal(t, 2, res.Report.Successes)
}

func TestStop_DuringFetching(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	dir := t.TempDir()
	var items []model.PackageItem
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		items = append(items, pkg(name, "1.0", "1", "noarch"))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-0.9-1.noarch.rpm"), []byte("old"), 0o644))

	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return(items, nil)

	rec := newRecorder(model.OutcomeDownloaded)
	orch := &Orchestrator{Catalog: cat, Fetchers: rec.factory}
	rec.onFetch = orch.Stop

	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: dir, Workers: 1, RemoveOld: true})
	require.NoError(t, err)

	assert.True(t, res.Stopped)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.Report.Processed())
	assert.Len(t, rec.files(), 1)
	assert.FileExists(t, filepath.Join(dir, "a-0.9-1.noarch.rpm"), "no pruning after a stop")
}

func TestSyncKickstarts(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	tree := "ks-rhel-x86_64-server-5"
	files := []model.PackageItem{
		{FileName: tree + "/images/pxeboot/vmlinuz", FetchPath: model.KickstartPath(channel, tree, "images/pxeboot/vmlinuz")},
		{FileName: tree + "/.treeinfo", FetchPath: model.KickstartPath(channel, tree, ".treeinfo")},
	}
	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	cat.EXPECT().KickstartFiles(gomock.Any(), channel).Return(files, nil)

	rec := newRecorder(model.OutcomeDownloaded)
	orch := &Orchestrator{Catalog: cat, Fetchers: rec.factory}

	res, err := orch.SyncKickstarts(context.Background(), channel, Options{SavePath: t.TempDir(), Workers: 2, RemoveOld: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Downloads)
	assert.Equal(t, []string{tree + "/.treeinfo", tree + "/images/pxeboot/vmlinuz"}, rec.files())
	assert.Empty(t, res.Pruned.Removed)
}

func TestSync_Scripts(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	scripts := ocmocks.NewMockHookRunner(ctrl)
	dir := t.TempDir()

	gomock.InOrder(
		cat.EXPECT().CheckAuth(gomock.Any()).Return(nil),
		scripts.EXPECT().Execute(hooks.PreSync, gomock.Any()).DoAndReturn(func(_ hooks.HookType, hc hooks.HookContext) error {
			assert.Equal(t, channel, hc.Channel)
			assert.Equal(t, dir, hc.SavePath)
			assert.Equal(t, "packages", hc.Kind)
			return nil
		}),
		cat.EXPECT().ChannelPackages(gomock.Any(), channel).Return([]model.PackageItem{pkg("A", "1.0", "1", "x86_64")}, nil),
		scripts.EXPECT().Execute(hooks.PostSync, gomock.Any()).DoAndReturn(func(_ hooks.HookType, hc hooks.HookContext) error {
			assert.Equal(t, 1, hc.Report.Downloads)
			assert.NotEmpty(t, hc.Vars["runID"])
			return pkgerrors.ErrHookScript
		}),
	)

	orch := &Orchestrator{Catalog: cat, Fetchers: newRecorder(model.OutcomeDownloaded).factory, Scripts: scripts}
	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: dir, SkipRepodata: true})
	require.ErrorIs(t, err, pkgerrors.ErrHookScript)
	assert.Equal(t, StateDone, res.State, "a failing post-sync hook does not undo the sync")
}

func TestSync_PreSyncHookAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	scripts := ocmocks.NewMockHookRunner(ctrl)

	cat.EXPECT().CheckAuth(gomock.Any()).Return(nil)
	scripts.EXPECT().Execute(hooks.PreSync, gomock.Any()).Return(pkgerrors.ErrHookExecution)

	orch := &Orchestrator{Catalog: cat, Fetchers: newRecorder(model.OutcomeNoop).factory, Scripts: scripts}
	res, err := orch.SyncPackages(context.Background(), channel, Options{SavePath: t.TempDir()})
	require.ErrorIs(t, err, pkgerrors.ErrHookExecution)
	assert.Equal(t, StateFailed, res.State)
}

func TestSync_SavePathLocked(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := ocmocks.NewMockCatalog(ctrl)
	dir := t.TempDir()

	lock, err := fsutil.LockDir(dir)
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	orch := &Orchestrator{Catalog: cat, Fetchers: newRecorder(model.OutcomeNoop).factory}
	_, err = orch.SyncPackages(context.Background(), channel, Options{SavePath: dir})
	require.ErrorIs(t, err, pkgerrors.ErrDirLocked)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "metadata-fetched", StateMetadataFetched.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
