// Package prune removes superseded RPMs from a mirrored directory.
package prune

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/cperrin88/grinder/internal/logger"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/evr"
)

// Pruner keeps the newest 1+KeepOld variants of every name.arch in a
// directory and deletes the rest.
type Pruner struct {
	// KeepOld is the number of older variants kept next to the newest one.
	// Negative values are treated as zero.
	KeepOld int
	// UseHeaders reads identity from RPM headers instead of file names.
	UseHeaders bool
}

// Result lists what a prune pass did.
type Result struct {
	Kept    []string
	Removed []string
	Skipped []string
}

type entry struct {
	path  string
	nevra evr.NEVRA
}

// Prune scans dir (not recursively) for *.rpm files and deletes the older
// variants beyond the retention limit. Files whose identity cannot be
// determined are left alone and reported as skipped.
func (p Pruner) Prune(dir string) (Result, error) {
	keep := p.KeepOld
	if keep < 0 {
		keep = 0
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.rpm"))
	if err != nil {
		return Result{}, pkgerrors.Wrapf(err, "scan %s", dir)
	}
	sort.Strings(paths)

	var res Result
	groups := make(map[string][]entry)
	var keys []string
	for _, path := range paths {
		nevra, err := p.identify(path)
		if err != nil {
			logger.Warn("cannot determine package identity, skipping", logger.Fields{"file": path, "error": err.Error()})
			res.Skipped = append(res.Skipped, path)
			continue
		}
		key := nevra.NameArch()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], entry{path: path, nevra: nevra})
	}

	logger.Info("pruning old packages", logger.Fields{"dir": dir, "keep_old": keep, "groups": len(keys)})
	for _, key := range keys {
		variants := groups[key]
		sort.SliceStable(variants, func(i, j int) bool {
			return evr.Compare(variants[i].nevra.EVR, variants[j].nevra.EVR) > 0
		})
		for i, v := range variants {
			if i <= keep {
				res.Kept = append(res.Kept, v.path)
				continue
			}
			if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
				return res, pkgerrors.Wrapf(err, "remove %s", v.path)
			}
			logger.Debug("removed superseded package", logger.Fields{"file": v.path, "newest": variants[0].path})
			res.Removed = append(res.Removed, v.path)
		}
	}
	return res, nil
}

func (p Pruner) identify(path string) (evr.NEVRA, error) {
	if p.UseHeaders {
		return evr.ReadHeader(path)
	}
	return evr.ParseFilename(path)
}
