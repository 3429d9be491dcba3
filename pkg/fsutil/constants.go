// Package fsutil holds the filesystem helpers shared by the mirror engine.
package fsutil

// Permission modes for mirrored content.
const (
	FileModeDefault = 0o644 // -rw-r--r--
	FileModeSecure  = 0o640 // -rw-r-----

	DirModeDefault = 0o755 // drwxr-xr-x
	DirModeSecure  = 0o750 // drwxr-x---
)

// LockFileName is created in a save path while a sync owns it.
const LockFileName = ".grinder.lock"
