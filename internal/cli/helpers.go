package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/auth"
	"github.com/cperrin88/grinder/pkg/catalog"
	"github.com/cperrin88/grinder/pkg/config"
	"github.com/cperrin88/grinder/pkg/download"
	"github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/hooks"
	grinderhttp "github.com/cperrin88/grinder/pkg/http"
	"github.com/cperrin88/grinder/pkg/model"
	"github.com/cperrin88/grinder/pkg/orchestrator"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
	LogFormat  *string
)

// userAgent is sent with every catalog and content request.
var userAgent = "grinder/" + Version

// loadConfig loads the configuration file and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if LogFormat != nil && *LogFormat != "" {
		cfg.Settings.LogFormat = *LogFormat
	}
	logger.SetLevel(cfg.Settings.LogLevel)
	logger.SetOutputFormat(logger.OutputFormat(cfg.Settings.LogFormat))
	return cfg, nil
}

func getConfigPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}

	defaultPath, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Warn("Failed to get default config path, using built-in path", logger.Fields{"error": err.Error()})
		return config.DefaultConfigPath
	}
	return defaultPath
}

// readSystemID returns the contents of the system id file.
func readSystemID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(errors.ErrSystemIDMissing, "%s: %v", path, err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", errors.Wrapf(errors.ErrSystemIDMissing, "%s is empty", path)
	}
	return id, nil
}

// newHTTPClient returns the client shared by catalog calls and fetchers.
func newHTTPClient(cfg *config.Config) *http.Client {
	return grinderhttp.NewHTTPClient(grinderhttp.Options{
		UserAgent:       userAgent,
		MaxConnsPerHost: cfg.Parallel + 1,
	})
}

// newCatalogClient builds the catalog client described by cfg.
func newCatalogClient(cfg *config.Config, httpClient *http.Client) (*catalog.Client, error) {
	systemID, err := readSystemID(cfg.SystemID)
	if err != nil {
		return nil, err
	}
	return catalog.NewClient(catalog.Options{
		BaseURL:    cfg.URL,
		SystemID:   systemID,
		HTTPClient: httpClient,
		UserAgent:  userAgent,
	})
}

// newFetcherFactory returns the per-worker fetchers for the orchestrator.
// With the worker credential scope every fetcher logs in on its own; the
// shared scope makes all workers of all syncs use one session.
func newFetcherFactory(cfg *config.Config, client *catalog.Client, httpClient *http.Client) (orchestrator.FetcherFactory, error) {
	scope, err := auth.ParseScope(cfg.Settings.CredentialScope)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	providers := auth.NewProviderFactory(scope, client.Login)

	return func(savePath string, worker int) download.Fetcher {
		return download.NewHTTPFetcher(httpClient, providers(worker), fetchOptions(cfg, client.BaseURL(), savePath))
	}, nil
}

// loadHooks reads the configured hook scripts. It returns nil when none is
// configured.
func loadHooks(cfg *config.Config) (orchestrator.HookRunner, error) {
	scripts := hooks.NewTengoExecutor()
	if err := scripts.LoadScript(hooks.PreSync, cfg.Settings.Hooks.PreSync); err != nil {
		return nil, err
	}
	if err := scripts.LoadScript(hooks.PostSync, cfg.Settings.Hooks.PostSync); err != nil {
		return nil, err
	}
	if !scripts.HasScript(hooks.PreSync) && !scripts.HasScript(hooks.PostSync) {
		return nil, nil
	}
	return scripts, nil
}

// fetchOptions returns the fetcher settings shared by all sync modes.
func fetchOptions(cfg *config.Config, baseURL, savePath string) download.Options {
	return download.Options{
		BaseURL:    baseURL,
		Dir:        savePath,
		Retries:    cfg.Settings.Retries,
		RetryDelay: cfg.Settings.RetryDelay,
		Timeout:    cfg.Settings.HTTPTimeout,
		UserAgent:  userAgent,
	}
}

type channelLister interface {
	ChannelFamilies(ctx context.Context) ([]model.ChannelFamily, error)
}

// offeredChannels maps every channel label the catalog offers to its
// product, leaving out the skipped products.
func offeredChannels(families []model.ChannelFamily, skip []string) map[string]string {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	offered := make(map[string]string)
	for _, f := range families {
		if skipped[f.Label] {
			continue
		}
		for _, ch := range f.Channels {
			offered[ch] = f.Label
		}
	}
	return offered
}
