package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/config"
	"github.com/cperrin88/grinder/pkg/errors"
)

// NewConfigCmd creates the config command: inspect and edit grinder.yml.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the grinder configuration file",
	}

	var asYAML bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings and channels",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if asYAML {
				data, err := cfg.ToYAML()
				if err != nil {
					return err
				}
				_, err = c.OutOrStdout().Write(data)
				return err
			}
			printSettings(c.OutOrStdout(), cfg)
			return nil
		},
	}
	show.Flags().BoolVar(&asYAML, "yaml", false, "print the configuration as YAML")

	get := &cobra.Command{
		Use:   "get KEY...",
		Short: "Print configuration values",
		Long:  "Print one value per key. With several keys each line reads KEY=VALUE.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, keys []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, key := range keys {
				value, err := cfg.GetValue(key)
				if err != nil {
					return err
				}
				if len(keys) > 1 {
					value = key + "=" + value
				}
				_, _ = fmt.Fprintln(c.OutOrStdout(), value)
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Change configuration values",
		Long: `Apply every assignment, validate the result and write the file once.
Nothing is written when an assignment or the validation fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, assignments []string) error {
			return updateConfig(assignments)
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := getConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Wrapf(errors.ErrConfigFileExists, "%s (pass --force to replace it)", path)
			}
			if err := config.DefaultConfig().SaveConfig(path); err != nil {
				return err
			}
			logger.Success("Configuration written", logger.Fields{"path": path})
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "replace an existing file")

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List the keys accepted by get and set",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(c.OutOrStdout(), strings.Join(config.Keys(), "\n"))
			return err
		},
	}

	cmd.AddCommand(show, get, set, initCmd, keys)
	return cmd
}

// updateConfig applies KEY=VALUE assignments and saves the file.
func updateConfig(assignments []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	changed := logger.Fields{}
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return errors.Wrapf(errors.ErrConfigValidation, "%q is not KEY=VALUE", a)
		}
		if err := cfg.SetValue(key, value); err != nil {
			return err
		}
		changed[key] = value
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := getConfigPath()
	if err := cfg.SaveConfig(path); err != nil {
		return err
	}
	changed["path"] = path
	logger.Success("Configuration saved", changed)
	return nil
}

func printSettings(out io.Writer, cfg *config.Config) {
	values := cfg.ToMap()
	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	for _, key := range config.Keys() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", key, values[key])
	}
	_ = tw.Flush()

	if len(cfg.Channels) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CHANNEL\tPATH")
	for _, ch := range cfg.Channels {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", ch.Label, cfg.SavePath(ch))
	}
	_ = tw.Flush()
}
