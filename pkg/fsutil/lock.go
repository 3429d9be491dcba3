package fsutil

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
)

// DirLock is an exclusive advisory lock over a save path.
type DirLock struct {
	fl *flock.Flock
}

// LockDir takes the save-path lock without blocking. It returns
// ErrDirLocked when another process already holds it.
func LockDir(dir string) (*DirLock, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(dir, LockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
	}
	if !locked {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrDirLocked, "%s", dir)
	}
	return &DirLock{fl: fl}, nil
}

// Unlock releases the lock. The lock file is left in place.
func (l *DirLock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
