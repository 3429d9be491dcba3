package download

import (
	"crypto/md5"  //nolint:gosec // catalog checksums are md5
	"crypto/sha1" //nolint:gosec // catalog checksums may be sha1
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/fsutil"
	"github.com/cperrin88/grinder/pkg/model"
)

// chunkSize is the read size used when streaming and hashing files.
const chunkSize = 64 * 1024

func newHash(checksumType string) (hash.Hash, error) {
	switch strings.ToLower(checksumType) {
	case "md5", "":
		return md5.New(), nil //nolint:gosec
	case "sha1", "sha":
		return sha1.New(), nil //nolint:gosec
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%q: %w", checksumType, pkgerrors.ErrUnsupportedChecksum)
	}
}

// verifyExisting reports whether path already holds the item: a regular file
// of the declared size whose digest matches the declared checksum.
func verifyExisting(path string, item model.PackageItem) (bool, error) {
	size, ok := fsutil.FileSize(path)
	if !ok || size != item.Size {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, pkgerrors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()

	h, err := newHash(item.Checksum.Type)
	if err != nil {
		return false, err
	}
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return false, pkgerrors.Wrap(err, "hashing")
	}
	return hex.EncodeToString(h.Sum(nil)) == normalizeHex(item.Checksum.Value), nil
}

func normalizeHex(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
