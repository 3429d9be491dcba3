package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir creates path and its parents with DirModeDefault.
// Several workers may race to create the same directory; losing that race is
// not an error as long as a directory ends up at path.
func EnsureDir(path string) error {
	err := os.MkdirAll(path, DirModeDefault)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return nil
		}
	}
	return fmt.Errorf("failed to create directory %s: %w", path, err)
}

// EnsureFileDir creates the parent directory of filePath.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}
