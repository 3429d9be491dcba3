// Package evr orders RPM epoch/version/release triples and derives package
// identity from RPM file names.
package evr

import (
	"fmt"
	"path/filepath"
	"strings"

	rpmutils "github.com/sassoftware/go-rpmutils"
)

// EVR is the (epoch, version, release) part of a package identity.
type EVR struct {
	Epoch   string
	Version string
	Release string
}

func (e EVR) String() string {
	if e.Epoch == "" || e.Epoch == "0" {
		return e.Version + "-" + e.Release
	}
	return e.Epoch + ":" + e.Version + "-" + e.Release
}

// Compare returns -1, 0 or 1 when a is older than, equal to or newer than b.
// Each field is compared with the rpmvercmp segment rules; an empty epoch is
// epoch 0. Callers must only compare variants of the same name and arch.
func Compare(a, b EVR) int {
	if c := rpmutils.Vercmp(normalizeEpoch(a.Epoch), normalizeEpoch(b.Epoch)); c != 0 {
		return c
	}
	if c := rpmutils.Vercmp(a.Version, b.Version); c != 0 {
		return c
	}
	return rpmutils.Vercmp(a.Release, b.Release)
}

// Newer reports whether a sorts strictly after b.
func Newer(a, b EVR) bool {
	return Compare(a, b) > 0
}

func normalizeEpoch(epoch string) string {
	if epoch == "" {
		return "0"
	}
	return epoch
}

// NEVRA is a package identity parsed from a file name or header.
type NEVRA struct {
	Name string
	EVR
	Arch string
}

// NameArch is the grouping key used for retention.
func (n NEVRA) NameArch() string {
	return n.Name + "." + n.Arch
}

// ParseFilename splits an RPM file name into its identity. Both
// "name-version-release.arch.rpm" and the epoch-carrying forms
// "epoch:name-version-release.arch.rpm" and
// "name-epoch:version-release.arch.rpm" are accepted.
func ParseFilename(filename string) (NEVRA, error) {
	base := strings.TrimSuffix(filepath.Base(filename), ".rpm")

	var n NEVRA
	dot := strings.LastIndex(base, ".")
	if dot <= 0 || dot == len(base)-1 {
		return n, fmt.Errorf("malformed rpm file name %q: missing arch", filename)
	}
	n.Arch = base[dot+1:]
	rest := base[:dot]

	dash := strings.LastIndex(rest, "-")
	if dash <= 0 {
		return n, fmt.Errorf("malformed rpm file name %q: missing release", filename)
	}
	n.Release = rest[dash+1:]
	rest = rest[:dash]

	dash = strings.LastIndex(rest, "-")
	if dash <= 0 {
		return n, fmt.Errorf("malformed rpm file name %q: missing version", filename)
	}
	n.Version = rest[dash+1:]
	n.Name = rest[:dash]

	if i := strings.Index(n.Version, ":"); i >= 0 {
		n.Epoch = n.Version[:i]
		n.Version = n.Version[i+1:]
	}
	if i := strings.Index(n.Name, ":"); i >= 0 {
		n.Epoch = n.Name[:i]
		n.Name = n.Name[i+1:]
	}
	if n.Name == "" || n.Version == "" || n.Release == "" {
		return n, fmt.Errorf("malformed rpm file name %q", filename)
	}
	return n, nil
}
