// Package config provides configuration management for grinder.
// It handles loading, validating, and saving the YAML file that names the
// upstream catalog, the local mirror layout and the channels to sync.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cperrin88/grinder/pkg/auth"
	"github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/fsutil"
)

// Config represents the application configuration.
type Config struct {
	// Upstream catalog
	URL      string `yaml:"url"`
	SystemID string `yaml:"systemid"`
	Cert     string `yaml:"cert,omitempty"`

	// Sync behaviour
	Parallel   int  `yaml:"parallel"`
	All        bool `yaml:"all"`
	RemoveOld  bool `yaml:"removeold"`
	NumOldKeep int  `yaml:"num_old_pkgs_keep"`

	// Local layout
	BasePath string    `yaml:"basepath"`
	Channels []Channel `yaml:"channels"`

	// General settings
	Settings Settings `yaml:"settings"`
}

// Channel is one channel to mirror. RelPath defaults to the label.
type Channel struct {
	Label   string `yaml:"label"`
	RelPath string `yaml:"relpath,omitempty"`
}

// Settings represents general application settings.
type Settings struct {
	// Network settings
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	Retries         int           `yaml:"retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	CredentialScope string        `yaml:"credential_scope"` // worker, shared

	// Sync extras
	Kickstarts    bool     `yaml:"kickstarts"`
	CreateRepo    bool     `yaml:"createrepo"`
	PruneByHeader bool     `yaml:"prune_by_header"`
	SkipProducts  []string `yaml:"skip_products"`

	// Output settings
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	Hooks HookSettings `yaml:"hooks"`
}

// HookSettings name the Tengo scripts run around each channel.
type HookSettings struct {
	PreSync  string `yaml:"pre_sync,omitempty"`
	PostSync string `yaml:"post_sync,omitempty"`
}

// Default configuration values.
const (
	DefaultURL        = "https://satellite.rhn.redhat.com"
	DefaultSystemID   = "/etc/sysconfig/rhn/systemid"
	DefaultCert       = "/etc/sysconfig/rhn/entitlement-cert.xml"
	DefaultParallel   = 5
	DefaultNumOldKeep = 1
	DefaultRetries    = 2
	DefaultRetryDelay = time.Second

	// DefaultConfigPath is used when neither a flag nor GRINDER_CONFIG names a file.
	DefaultConfigPath = "/etc/grinder/grinder.yml"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultSkipProducts are channel family labels that never hold mirrorable content.
var DefaultSkipProducts = []string{"rh-public", "k12ltsp", "education"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		URL:        DefaultURL,
		SystemID:   DefaultSystemID,
		Cert:       DefaultCert,
		Parallel:   DefaultParallel,
		NumOldKeep: DefaultNumOldKeep,
		BasePath:   "./",
		Channels:   []Channel{},
		Settings: Settings{
			Retries:         DefaultRetries,
			RetryDelay:      DefaultRetryDelay,
			CredentialScope: string(auth.ScopeWorker),
			CreateRepo:      true,
			SkipProducts:    append([]string(nil), DefaultSkipProducts...),
			LogLevel:        "info",
			LogFormat:       "text",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader. Keys absent
// from the document keep their default values.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves configuration to a file.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeSecure)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	// Atomically replace the config file
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	return data, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if c.All && c.RemoveOld {
		return errors.ErrConflictingOptions
	}
	if c.Parallel < 1 {
		return errors.Wrapf(errors.ErrConfigValidation, "parallel must be at least 1, got %d", c.Parallel)
	}
	if c.NumOldKeep < 0 {
		return errors.Wrapf(errors.ErrConfigValidation, "num_old_pkgs_keep cannot be negative")
	}
	if err := validateChannels(c.Channels); err != nil {
		return err
	}
	return validateSettings(c.Settings)
}

func validateChannels(channels []Channel) error {
	seen := make(map[string]bool)
	for i, ch := range channels {
		if ch.Label == "" {
			return errors.Wrapf(errors.ErrConfigValidation, "channel %d has an empty label", i)
		}
		if seen[ch.Label] {
			return errors.Wrapf(errors.ErrConfigValidation, "channel %s is listed twice", ch.Label)
		}
		seen[ch.Label] = true
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout < 0 {
		return errors.Wrapf(errors.ErrConfigValidation, "http_timeout cannot be negative")
	}
	if s.Retries < 0 {
		return errors.Wrapf(errors.ErrConfigValidation, "retries cannot be negative")
	}
	if s.RetryDelay < 0 {
		return errors.Wrapf(errors.ErrConfigValidation, "retry_delay cannot be negative")
	}
	if _, err := auth.ParseScope(s.CredentialScope); err != nil {
		return errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[s.LogFormat] {
		return errors.Wrapf(errors.ErrConfigValidation, "invalid log format %q", s.LogFormat)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.LogLevel)] {
		return errors.Wrapf(errors.ErrConfigValidation, "invalid log level %q", s.LogLevel)
	}
	return nil
}

// GetDefaultConfigPath returns the configuration file path to use when none
// is given on the command line.
func GetDefaultConfigPath() (string, error) {
	if path := os.Getenv("GRINDER_CONFIG"); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve GRINDER_CONFIG: %w", err)
		}
		return abs, nil
	}
	return DefaultConfigPath, nil
}

// Channel returns the configured channel with the given label.
func (c *Config) Channel(label string) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Label == label {
			return ch, true
		}
	}
	return Channel{}, false
}

// Labels returns the labels of all configured channels in file order.
func (c *Config) Labels() []string {
	labels := make([]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		labels = append(labels, ch.Label)
	}
	return labels
}

// SavePath returns the directory a channel is mirrored into. Kickstart
// trees land in subdirectories of the same path.
func (c *Config) SavePath(ch Channel) string {
	rel := ch.RelPath
	if rel == "" {
		rel = ch.Label
	}
	return filepath.Join(c.BasePath, rel)
}

