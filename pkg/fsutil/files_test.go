package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
)

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dl-1.tmp")
	dst := filepath.Join(dir, "nested", "pkg-1.0-1.noarch.rpm")
	require.NoError(t, os.WriteFile(src, []byte("payload"), FileModeDefault))

	require.NoError(t, Move(src, dst))

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestMove_Errors(t *testing.T) {
	assert.Error(t, Move("", "x"))
	assert.Error(t, Move(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "dst")))
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.rpm")
	require.NoError(t, os.WriteFile(path, nil, FileModeDefault))

	assert.NoError(t, RemoveIfExists(path))
	assert.NoFileExists(t, path)
	assert.NoError(t, RemoveIfExists(path), "missing file is not an error")
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.rpm")
	require.NoError(t, os.WriteFile(path, []byte("12345"), FileModeDefault))

	size, ok := FileSize(path)
	assert.True(t, ok)
	assert.EqualValues(t, 5, size)

	_, ok = FileSize(dir)
	assert.False(t, ok, "directories are not regular files")
	_, ok = FileSize(filepath.Join(dir, "missing"))
	assert.False(t, ok)
}

func TestLockDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "channel")

	first, err := LockDir(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, LockFileName))

	_, err = LockDir(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrDirLocked))

	require.NoError(t, first.Unlock())

	second, err := LockDir(dir)
	require.NoError(t, err)
	assert.NoError(t, second.Unlock())
}
