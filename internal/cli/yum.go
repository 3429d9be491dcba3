package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/download"
	"github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/orchestrator"
	"github.com/cperrin88/grinder/pkg/yumrepo"
)

type yumOptions struct {
	label      string
	url        string
	dir        string
	parallel   int
	newest     bool
	noProgress bool
}

// NewYumCmd creates the yum command.
func NewYumCmd() *cobra.Command {
	opts := &yumOptions{}
	cmd := &cobra.Command{
		Use:   "yum --label LABEL --url URL",
		Short: "Mirror a plain yum repository",
		Long: `Mirror the packages and metadata of a yum repository into DIR/LABEL.

Packages keep the layout of the repository. The repository metadata is
copied after all packages are in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runYum(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.label, "label", "", "repository label, names the target directory")
	f.StringVar(&opts.url, "url", "", "repository base URL")
	f.StringVarP(&opts.dir, "dir", "d", "./", "directory the repository is stored under")
	f.IntVarP(&opts.parallel, "parallel", "P", 0, "number of parallel downloads")
	f.BoolVar(&opts.newest, "newest", false, "fetch only the newest version of every package")
	f.BoolVar(&opts.noProgress, "no-progress", false, "do not draw a progress bar")

	return cmd
}

func runYum(cmd *cobra.Command, opts *yumOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.label == "" {
		return fmt.Errorf("%w: --label is required", errors.ErrNoChannelLabel)
	}
	if opts.url == "" {
		return fmt.Errorf("%w: --url is required", errors.ErrConfigValidation)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parallel") {
		cfg.Parallel = opts.parallel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	scripts, err := loadHooks(cfg)
	if err != nil {
		return err
	}

	savePath := filepath.Join(opts.dir, opts.label)
	httpClient := newHTTPClient(cfg)
	fetchers := func(dir string, _ int) download.Fetcher {
		return download.NewHTTPFetcher(httpClient, nil, fetchOptions(cfg, opts.url, dir))
	}
	repo := yumrepo.NewRepo(yumrepo.Options{
		URL:        opts.url,
		HTTPClient: httpClient,
		UserAgent:  userAgent,
		Dir:        savePath,
		Fetcher:    fetchers(savePath, 0),
	})

	orch := &orchestrator.Orchestrator{Catalog: repo, Fetchers: fetchers, Scripts: scripts}
	orch.Hooks = progressFor(opts.noProgress, cmd.ErrOrStderr(), opts.label).hooks()
	interrupts, release := catchInterrupts(ctx, orch.Stop)
	defer release()

	logger.Info("Syncing yum repository", logger.Fields{"repo": opts.label, "url": repo.BaseURL(), "path": savePath})
	res, err := orch.SyncPackages(ctx, opts.label, orchestrator.Options{
		SavePath:     savePath,
		Workers:      cfg.Parallel,
		FilterLatest: opts.newest,
		SkipRepodata: true,
	})
	if err != nil {
		return err
	}
	summarize(opts.label, "yum", res)

	if res.Stopped || interrupts.Stopped() {
		logger.Warn("Repository metadata not updated after interrupt", logger.Fields{"repo": opts.label})
		return nil
	}
	return repo.MirrorMetadata(ctx)
}
