// Package model holds the catalog item and fetch result types shared by the
// mirror engine.
package model

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Checksum is a digest tagged with its algorithm (md5, sha1, sha256, sha512).
type Checksum struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

func (c Checksum) String() string {
	return c.Type + ":" + c.Value
}

// PackageItem is one fetchable unit announced by the catalog. Values are
// treated as immutable once built.
type PackageItem struct {
	Name     string
	Epoch    string
	Version  string
	Release  string
	Arch     string
	Size     int64
	Checksum Checksum

	// FetchName is the server-side identifier, FetchPath the URL path built
	// from it. FileName is the path of the artifact below the save path and
	// may contain directories.
	FetchName string
	FetchPath string
	FileName  string
}

// NameArch is the identity shared by every variant of one logical package.
func (p PackageItem) NameArch() string {
	return p.Name + "." + p.Arch
}

// NEVRA is the identity of one exact artifact.
func (p PackageItem) NEVRA() string {
	epoch := p.Epoch
	if epoch == "" {
		epoch = "0"
	}
	return fmt.Sprintf("%s-%s:%s-%s.%s", p.Name, epoch, p.Version, p.Release, p.Arch)
}

func (p PackageItem) String() string {
	if p.FileName != "" {
		return p.FileName
	}
	return p.NEVRA()
}

// ChannelFamily groups channel labels under a product label.
type ChannelFamily struct {
	Label    string
	Channels []string
}

// Fetch path templates on the catalog host.
const (
	packagePathTemplate   = "/SAT/$RHN/%s/getPackage/%s"
	kickstartPathTemplate = "/SAT/$RHN/%s/getKickstartFile/%s/%s"
	repodataPathTemplate  = "/SAT/$RHN/%s/repodata/%s"
)

// PackageFetchName is the identifier the catalog expects for a package:
// name-version-release:epoch.arch.rpm.
func PackageFetchName(name, epoch, version, release, arch string) string {
	return fmt.Sprintf("%s-%s-%s:%s.%s.rpm", name, version, release, epoch, arch)
}

// PackageFileName is the local file name: name-version-release.arch.rpm.
func PackageFileName(name, version, release, arch string) string {
	return fmt.Sprintf("%s-%s-%s.%s.rpm", name, version, release, arch)
}

// PackagePath returns the fetch path of a package in channel.
func PackagePath(channel, fetchName string) string {
	return fmt.Sprintf(packagePathTemplate, escapePath(channel), escapePath(fetchName))
}

// KickstartPath returns the fetch path of a file inside a kickstart tree.
// relPath may contain directories; every segment is escaped on its own.
func KickstartPath(channel, tree, relPath string) string {
	return fmt.Sprintf(kickstartPathTemplate, escapePath(channel), escapePath(tree), escapePath(relPath))
}

// RepodataPath returns the fetch path of a repodata side file.
func RepodataPath(channel, name string) string {
	return fmt.Sprintf(repodataPathTemplate, escapePath(channel), escapePath(name))
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// RepoPath returns the fetch path of a file below a yum repository URL.
func RepoPath(href string) string {
	return "/" + escapePath(strings.TrimLeft(href, "/"))
}

// KickstartFileName is the local, nested file name of a kickstart file.
func KickstartFileName(tree, relPath string) string {
	return path.Join(tree, relPath)
}
