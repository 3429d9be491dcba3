// Package yumrepo mirrors a plain yum repository: it reads repomd.xml and
// primary.xml and announces the packages as fetchable items.
package yumrepo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/download"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/fsutil"
	"github.com/cperrin88/grinder/pkg/model"
)

// RepoMdPath is the location of the repository index below the base URL.
const RepoMdPath = "repodata/repomd.xml"

// maxRepoMdSize caps the repomd.xml download.
const maxRepoMdSize = 16 << 20

// Options configure a Repo.
type Options struct {
	URL        string
	HTTPClient *http.Client
	UserAgent  string
	// Dir is the save path metadata files are stored under.
	Dir string
	// Fetcher downloads and verifies metadata files below Dir.
	Fetcher download.Fetcher
}

// Repo is one remote yum repository. It serves the package list to the
// orchestrator and mirrors the repository metadata once packages are in place.
type Repo struct {
	opts Options

	mu     sync.Mutex
	repomd []byte
	md     *RepoMd
}

// NewRepo creates a repository client.
func NewRepo(opts Options) *Repo {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "grinder/1.0"
	}
	opts.URL = strings.TrimRight(opts.URL, "/")
	return &Repo{opts: opts}
}

// BaseURL returns the repository URL without a trailing slash.
func (r *Repo) BaseURL() string {
	return r.opts.URL
}

// CheckAuth always succeeds; plain yum repositories take no credentials.
func (r *Repo) CheckAuth(context.Context) error {
	return nil
}

// ChannelPackages reads repomd.xml and the primary metadata it points to and
// returns every rpm package. The label only names the repository in logs.
func (r *Repo) ChannelPackages(ctx context.Context, label string) ([]model.PackageItem, error) {
	md, err := r.loadRepoMd(ctx)
	if err != nil {
		return nil, err
	}
	primary, ok := md.Find("primary")
	if !ok {
		return nil, fmt.Errorf("%w: repomd.xml lists no primary metadata", pkgerrors.ErrRepoMetadata)
	}
	item, err := primary.Item()
	if err != nil {
		return nil, err
	}
	if err := r.fetchMetadata(ctx, item); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(r.opts.Dir, filepath.FromSlash(item.FileName)))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open primary metadata")
	}
	defer func() { _ = f.Close() }()
	p, err := ParsePrimary(item.FileName, f)
	if err != nil {
		return nil, err
	}

	items := make([]model.PackageItem, 0, len(p.Packages))
	for _, pkg := range p.Packages {
		if pkg.Type != "" && pkg.Type != "rpm" {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(pkg.Location.Href)) {
			logger.Warn("skipping package outside the repository", logger.Fields{"repo": label, "href": pkg.Location.Href})
			continue
		}
		it, err := pkg.Item()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	logger.Info("repository package list retrieved", logger.Fields{"repo": label, "packages": len(items)})
	return items, nil
}

// KickstartFiles returns nothing; yum repositories carry no kickstart trees.
func (r *Repo) KickstartFiles(context.Context, string) ([]model.PackageItem, error) {
	return nil, nil
}

// Repodata reports every side file as missing. MirrorMetadata copies the
// repository's own metadata instead.
func (r *Repo) Repodata(_ context.Context, _, name string) ([]byte, error) {
	return nil, fmt.Errorf("%s: %w", name, pkgerrors.ErrRepodataNotFound)
}

// MirrorMetadata downloads every metadata file listed in repomd.xml and then
// writes repomd.xml itself, so the mirror only points at files it holds.
func (r *Repo) MirrorMetadata(ctx context.Context) error {
	md, err := r.loadRepoMd(ctx)
	if err != nil {
		return err
	}
	for _, d := range md.Data {
		if !filepath.IsLocal(filepath.FromSlash(d.Location.Href)) {
			return fmt.Errorf("%w: %s metadata at %q", pkgerrors.ErrUnsafePath, d.Type, d.Location.Href)
		}
		item, err := d.Item()
		if err != nil {
			return err
		}
		if err := r.fetchMetadata(ctx, item); err != nil {
			return err
		}
	}

	r.mu.Lock()
	raw := r.repomd
	r.mu.Unlock()
	path := filepath.Join(r.opts.Dir, filepath.FromSlash(RepoMdPath))
	if err := fsutil.EnsureFileDir(path); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, fsutil.FileModeDefault); err != nil {
		return pkgerrors.Wrap(err, "write repomd.xml")
	}
	if err := fsutil.Move(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	logger.Info("repository metadata mirrored", logger.Fields{"dir": r.opts.Dir, "files": len(md.Data) + 1})
	return nil
}

func (r *Repo) fetchMetadata(ctx context.Context, item model.PackageItem) error {
	res := r.opts.Fetcher.Fetch(ctx, item)
	if !res.Outcome.Success() {
		return fmt.Errorf("%w: %s: %s: %w", pkgerrors.ErrRepoMetadata, item.FileName, res.Outcome, res.Err)
	}
	return nil
}

// loadRepoMd downloads and parses repomd.xml once per Repo.
func (r *Repo) loadRepoMd(ctx context.Context) (*RepoMd, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.md != nil {
		return r.md, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.URL+model.RepoPath(RepoMdPath), http.NoBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status code: %d: %w", RepoMdPath, resp.StatusCode, pkgerrors.ErrDownloadFailed)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRepoMdSize+1))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read repomd.xml")
	}
	if len(raw) > maxRepoMdSize {
		return nil, fmt.Errorf("%s: %w", RepoMdPath, pkgerrors.ErrResponseTooLarge)
	}
	md, err := ParseRepoMd(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	r.repomd, r.md = raw, md
	return md, nil
}
