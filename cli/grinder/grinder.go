package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cperrin88/grinder/internal/cli"
)

var (
	configPath string
	verbose    bool
	logFormat  string
)

func main() {
	// SIGINT is handled by the sync command itself: the first one stops
	// gracefully, the second exits.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grinder",
		Short: "Mirror RPM channels from a satellite catalog",
		Long: `grinder mirrors channels from a satellite catalog into local yum
repositories:
- sync: parallel, verified package and kickstart downloads
- yum: mirror a plain yum repository
- prune: keep only the newest versions of every package
- channels: list what the catalog offers`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $GRINDER_CONFIG or /etc/grinder/grinder.yml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	// Set up CLI package variables
	cli.ConfigPath = &configPath
	cli.Verbose = &verbose
	cli.LogFormat = &logFormat

	// Add subcommands
	cmd.AddCommand(
		cli.NewSyncCmd(),
		cli.NewYumCmd(),
		cli.NewChannelsCmd(),
		cli.NewPruneCmd(),
		cli.NewConfigCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
