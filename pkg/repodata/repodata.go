// Package repodata retrieves a channel's repodata side files and rebuilds
// the yum metadata of a mirrored directory.
//
//go:generate mockgen -destination=./mocks/repodata.go . Source,Runner
package repodata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/mholt/archives"

	"github.com/cperrin88/grinder/internal/logger"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/fsutil"
)

// Side file names on the catalog and on disk.
const (
	CompsFile        = "comps.xml"
	UpdateInfoFile   = "updateinfo.xml"
	UpdateInfoGzFile = "updateinfo.xml.gz"
)

// Source serves repodata files of a channel.
type Source interface {
	Repodata(ctx context.Context, label, name string) ([]byte, error)
}

// Files records which side files were stored. Empty paths mean the channel
// has no such file.
type Files struct {
	Comps      string
	UpdateInfo string
}

// Fetch downloads comps.xml and updateinfo.xml.gz of label into dir and
// expands the latter. A file the catalog does not have is skipped.
func Fetch(ctx context.Context, src Source, label, dir string) (Files, error) {
	var files Files
	if err := fsutil.EnsureDir(dir); err != nil {
		return files, err
	}
	fields := logger.Fields{"channel": label}

	comps, err := src.Repodata(ctx, label, CompsFile)
	switch {
	case errors.Is(err, pkgerrors.ErrRepodataNotFound):
		logger.Info("channel has no comps.xml", fields)
	case err != nil:
		return files, pkgerrors.Wrapf(err, "fetch %s", CompsFile)
	default:
		files.Comps = filepath.Join(dir, CompsFile)
		if err := writeFile(files.Comps, bytes.NewReader(comps)); err != nil {
			return files, err
		}
	}

	gz, err := src.Repodata(ctx, label, UpdateInfoGzFile)
	switch {
	case errors.Is(err, pkgerrors.ErrRepodataNotFound):
		logger.Info("channel has no updateinfo", fields)
		return files, nil
	case err != nil:
		return files, pkgerrors.Wrapf(err, "fetch %s", UpdateInfoGzFile)
	}
	if err := writeFile(filepath.Join(dir, UpdateInfoGzFile), bytes.NewReader(gz)); err != nil {
		return files, err
	}
	rc, err := archives.Gz{}.OpenReader(bytes.NewReader(gz))
	if err != nil {
		return files, pkgerrors.Wrapf(err, "open %s", UpdateInfoGzFile)
	}
	defer rc.Close()
	files.UpdateInfo = filepath.Join(dir, UpdateInfoFile)
	if err := writeFile(files.UpdateInfo, rc); err != nil {
		files.UpdateInfo = ""
		return files, err
	}
	return files, nil
}

func writeFile(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".repodata-*.tmp")
	if err != nil {
		return pkgerrors.Wrap(err, "could not create temp file")
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return pkgerrors.Wrapf(err, "write %s", filepath.Base(path))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), fsutil.FileModeDefault); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return fsutil.Move(tmp.Name(), path)
}
