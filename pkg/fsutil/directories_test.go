package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name:  "creates new directory",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "newdir") },
		},
		{
			name:  "creates nested directories",
			setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "a", "b", "c") },
		},
		{
			name:  "succeeds when directory already exists",
			setup: func(t *testing.T) string { return t.TempDir() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			require.NoError(t, EnsureDir(path))
			assert.DirExists(t, path)
		})
	}
}

func TestEnsureDir_ConcurrentCreation(t *testing.T) {
	target := filepath.Join(t.TempDir(), "ks", "images", "pxeboot")

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = EnsureDir(target)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.DirExists(t, target)
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(path, []byte("x"), FileModeDefault))

	assert.Error(t, EnsureDir(path))
}

func TestEnsureDir_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	readonly := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readonly, 0o555))

	assert.Error(t, EnsureDir(filepath.Join(readonly, "child")))
}

func TestEnsureFileDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "images", "boot.iso")
	require.NoError(t, EnsureFileDir(file))
	assert.DirExists(t, filepath.Dir(file))
}
