package repodata

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cperrin88/grinder/internal/logger"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
)

// Runner runs an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Regenerate rebuilds the yum metadata of dir with createrepo and merges
// updateinfo into it with modifyrepo when present.
func Regenerate(ctx context.Context, runner Runner, dir string, files Files) error {
	args := []string{"--update"}
	if files.Comps != "" {
		args = append(args, "-g", filepath.Base(files.Comps))
	}
	args = append(args, dir)
	if err := run(ctx, runner, "createrepo", args...); err != nil {
		return err
	}

	if files.UpdateInfo == "" {
		return nil
	}
	return run(ctx, runner, "modifyrepo", files.UpdateInfo, filepath.Join(dir, "repodata")+"/")
}

func run(ctx context.Context, runner Runner, name string, args ...string) error {
	fields := logger.Fields{"command": name + " " + strings.Join(args, " ")}
	logger.Info("running repository tool", fields)
	out, err := runner.Run(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w: %s", pkgerrors.ErrRepoToolFailed, name, err, strings.TrimSpace(string(out)))
	}
	logger.Debug("repository tool finished", fields.With(logger.Fields{"output": strings.TrimSpace(string(out))}))
	return nil
}
