package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/fsutil"
	"github.com/cperrin88/grinder/pkg/prune"
)

// NewPruneCmd creates the prune command.
func NewPruneCmd() *cobra.Command {
	var (
		keep       int
		useHeaders bool
	)
	cmd := &cobra.Command{
		Use:   "prune DIR",
		Short: "Remove superseded packages from a directory",
		Long: `Keep the newest package of every name and architecture in DIR plus
--keep older versions, and delete the rest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			dir := args[0]
			lock, err := fsutil.LockDir(dir)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			res, err := prune.Pruner{KeepOld: keep, UseHeaders: useHeaders}.Prune(dir)
			if err != nil {
				return fmt.Errorf("failed to prune %s: %w", dir, err)
			}
			for _, path := range res.Removed {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", path)
			}
			logger.Success("Prune finished", logger.Fields{
				"dir":     dir,
				"kept":    len(res.Kept),
				"removed": len(res.Removed),
				"skipped": len(res.Skipped),
			})
			return nil
		},
	}
	cmd.Flags().IntVarP(&keep, "keep", "n", 1, "older versions to keep next to the newest")
	cmd.Flags().BoolVar(&useHeaders, "headers", false, "identify packages from their RPM headers")
	return cmd
}
