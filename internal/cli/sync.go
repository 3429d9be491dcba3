package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/config"
	"github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/orchestrator"
	"github.com/cperrin88/grinder/pkg/repodata"
)

type syncOptions struct {
	url           string
	systemID      string
	basePath      string
	parallel      int
	numOld        int
	scope         string
	all           bool
	removeOld     bool
	kickstarts    bool
	skipPackages  bool
	noCreateRepo  bool
	pruneByHeader bool
	noProgress    bool
}

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	return newSyncCmd(&syncOptions{})
}

func newSyncCmd(opts *syncOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [CHANNEL...]",
		Short: "Mirror channels from the catalog",
		Long: `Mirror the packages of one or more channels into local directories.

Channels named on the command line replace the channel list of the config
file and are stored under BASEPATH/LABEL. Interrupt once to let running
downloads finish, twice to quit at once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.url, "url", "U", "", "catalog URL")
	f.StringVarP(&opts.systemID, "systemid", "s", "", "system id file")
	f.StringVarP(&opts.basePath, "basepath", "b", "", "directory channels are stored under")
	f.IntVarP(&opts.parallel, "parallel", "P", 0, "number of parallel downloads")
	f.IntVarP(&opts.numOld, "numold", "n", 0, "number of older package versions to keep with --removeold")
	f.StringVar(&opts.scope, "credential-scope", "", "credential cache scope (worker, shared)")
	f.BoolVarP(&opts.all, "all", "a", false, "fetch every version, not only the latest")
	f.BoolVarP(&opts.removeOld, "removeold", "r", false, "remove superseded packages after the sync")
	f.BoolVarP(&opts.kickstarts, "kickstarts", "k", false, "also sync kickstart trees")
	f.BoolVar(&opts.skipPackages, "skippackages", false, "do not sync packages")
	f.BoolVar(&opts.noCreateRepo, "no-createrepo", false, "do not regenerate repository metadata")
	f.BoolVar(&opts.pruneByHeader, "prune-by-header", false, "read RPM headers to identify packages when pruning")
	f.BoolVar(&opts.noProgress, "no-progress", false, "do not draw progress bars")

	return cmd
}

// applyFlags overrides config values with the flags the user set.
func (o *syncOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.URL = o.url
	}
	if changed("systemid") {
		cfg.SystemID = o.systemID
	}
	if changed("basepath") {
		cfg.BasePath = o.basePath
	}
	if changed("parallel") {
		cfg.Parallel = o.parallel
	}
	if changed("numold") {
		cfg.NumOldKeep = o.numOld
	}
	if changed("credential-scope") {
		cfg.Settings.CredentialScope = o.scope
	}
	if o.all {
		cfg.All = true
	}
	if o.removeOld {
		cfg.RemoveOld = true
	}
	if o.kickstarts {
		cfg.Settings.Kickstarts = true
	}
	if o.noCreateRepo {
		cfg.Settings.CreateRepo = false
	}
	if o.pruneByHeader {
		cfg.Settings.PruneByHeader = true
	}
}

// channelTargets resolves the channels to sync. Labels given as arguments
// replace the configured list and are stored under basepath/label; a
// configured relpath is ignored for them unless --basepath was given.
func channelTargets(cmd *cobra.Command, cfg *config.Config, args []string) []config.Channel {
	if len(args) == 0 {
		return cfg.Channels
	}
	if !cmd.Flags().Changed("basepath") {
		cfg.BasePath = "./"
	}
	targets := make([]config.Channel, 0, len(args))
	for _, label := range args {
		targets = append(targets, config.Channel{Label: label})
	}
	return targets
}

func runSync(cmd *cobra.Command, args []string, opts *syncOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, cfg)
	targets := channelTargets(cmd, cfg, args)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: name channels on the command line or in %s", errors.ErrNoChannelLabel, getConfigPath())
	}

	httpClient := newHTTPClient(cfg)
	client, err := newCatalogClient(cfg, httpClient)
	if err != nil {
		return err
	}
	fetchers, err := newFetcherFactory(cfg, client, httpClient)
	if err != nil {
		return err
	}
	if err := checkChannels(ctx, client, cfg, targets); err != nil {
		return err
	}

	scripts, err := loadHooks(cfg)
	if err != nil {
		return err
	}

	orch := &orchestrator.Orchestrator{Catalog: client, Fetchers: fetchers, Scripts: scripts}

	interrupts, release := catchInterrupts(ctx, orch.Stop)
	defer release()

	out := cmd.ErrOrStderr()
	var failures int
	for _, ch := range targets {
		if interrupts.Stopped() || ctx.Err() != nil {
			logger.Warn("Sync interrupted, skipping remaining channels", logger.Fields{"channel": ch.Label})
			break
		}
		if err := syncChannel(ctx, orch, cfg, ch, opts, out, interrupts); err != nil {
			logger.Error("Channel sync failed", logger.Fields{"channel": ch.Label, "error": err.Error()})
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d channels failed to sync", failures, len(targets))
	}
	return nil
}

// checkChannels fails when a target is not offered by any channel family.
func checkChannels(ctx context.Context, client channelLister, cfg *config.Config, targets []config.Channel) error {
	families, err := client.ChannelFamilies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}
	offered := offeredChannels(families, cfg.Settings.SkipProducts)
	var missing []string
	for _, ch := range targets {
		if _, ok := offered[ch.Label]; !ok {
			missing = append(missing, ch.Label)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Wrapf(errors.ErrUnknownChannel, "%v", missing)
	}
	return nil
}

func syncChannel(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config, ch config.Channel, opts *syncOptions, out io.Writer, interrupts *interruptHandler) error {
	savePath := cfg.SavePath(ch)
	syncOpts := orchestrator.Options{
		SavePath:      savePath,
		Workers:       cfg.Parallel,
		FilterLatest:  !cfg.All,
		RemoveOld:     cfg.RemoveOld,
		KeepOld:       cfg.NumOldKeep,
		PruneByHeader: cfg.Settings.PruneByHeader,
	}

	if !opts.skipPackages {
		logger.Info("Syncing channel", logger.Fields{"channel": ch.Label, "path": savePath})
		orch.Hooks = progressFor(opts.noProgress, out, ch.Label).hooks()
		res, err := orch.SyncPackages(ctx, ch.Label, syncOpts)
		if err != nil {
			return err
		}
		summarize(ch.Label, "packages", res)

		if cfg.Settings.CreateRepo && !res.Stopped && !interrupts.Stopped() {
			logger.Info("Sync completed, running createrepo", logger.Fields{"channel": ch.Label})
			if err := repodata.Regenerate(ctx, repodata.ExecRunner{}, savePath, res.Repodata); err != nil {
				return err
			}
		}
	}

	if cfg.Settings.Kickstarts && !interrupts.Stopped() {
		orch.Hooks = progressFor(opts.noProgress, out, filepath.Join(ch.Label, "kickstarts")).hooks()
		res, err := orch.SyncKickstarts(ctx, ch.Label, syncOpts)
		if err != nil {
			return err
		}
		summarize(ch.Label, "kickstarts", res)
	}
	return nil
}

func progressFor(disabled bool, out io.Writer, label string) *progress {
	if disabled {
		return nil
	}
	return newProgress(out, label)
}

func summarize(label, kind string, res orchestrator.Result) {
	fields := logger.Fields{
		"channel":   label,
		"kind":      kind,
		"run":       res.RunID,
		"successes": res.Report.Successes,
		"downloads": res.Report.Downloads,
		"errors":    res.Report.Errors,
		"elapsed":   res.Elapsed.Round(time.Millisecond).String(),
	}
	if len(res.Pruned.Removed) > 0 {
		fields["removed"] = len(res.Pruned.Removed)
	}
	for _, f := range res.Report.Failed {
		logger.Warn("Item failed", logger.Fields{"channel": label, "item": f.Item.String(), "outcome": string(f.Outcome)})
	}
	if res.Stopped {
		logger.Warn("Sync stopped before all items were processed", fields)
		return
	}
	logger.Success("Sync finished", fields)
}
