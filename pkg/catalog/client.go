// Package catalog talks to the satellite catalog: the XML-RPC authentication
// and dump endpoints plus the plain HTTP repodata files.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/klauspost/compress/gzip"
	"github.com/kolo/xmlrpc"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/auth"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/model"
)

const (
	// DumpVersion is sent with every dump request and fetch.
	DumpVersion = "3.4"
	// SupportedDumpVersions constrains the version of returned documents.
	SupportedDumpVersions = ">= 3.3"

	dumpVersionHeader = "X-RHN-Satellite-XML-Dump-Version"
	satEndpoint       = "/SAT"
	dumpEndpoint      = "/SAT-DUMP"

	// packagesPerCall bounds the id list of one packages_short call.
	packagesPerCall = 1000
)

// maxResponseSize caps a single catalog response body.
var maxResponseSize int64 = 256 << 20

// Options configure a Client.
type Options struct {
	BaseURL    string
	SystemID   string
	HTTPClient *http.Client
	UserAgent  string
}

// Client is an XML-RPC client for one catalog host and system id.
type Client struct {
	httpClient *http.Client
	baseURL    string
	systemID   string
	userAgent  string
	supported  version.Constraints
	creds      *auth.Cache
}

// NewClient creates a catalog client.
func NewClient(opts Options) (*Client, error) {
	constraints, err := version.NewConstraint(SupportedDumpVersions)
	if err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "grinder/1.0"
	}
	c := &Client{
		httpClient: opts.HTTPClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		systemID:   opts.SystemID,
		userAgent:  opts.UserAgent,
		supported:  constraints,
	}
	c.creds = auth.NewCache(c.Login)
	return c, nil
}

// BaseURL returns the catalog host URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckAuth verifies that the catalog accepts the system id.
func (c *Client) CheckAuth(ctx context.Context) error {
	res, err := c.invoke(ctx, satEndpoint, "authentication.check", c.systemID)
	if err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrAuthenticationRejected, err)
	}
	switch v := res.(type) {
	case int64:
		if v == 1 {
			return nil
		}
	case bool:
		if v {
			return nil
		}
	}
	return fmt.Errorf("%w: check returned %v", pkgerrors.ErrAuthenticationRejected, res)
}

// Login obtains a fresh set of session headers for content requests.
func (c *Client) Login(ctx context.Context) (map[string]string, error) {
	res, err := c.invoke(ctx, satEndpoint, "authentication.login", c.systemID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "login")
	}
	st, ok := res.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: login returned %T", pkgerrors.ErrCatalogResponse, res)
	}
	headers := make(map[string]string, len(st)+1)
	for k, v := range st {
		if v == nil {
			headers[k] = ""
			continue
		}
		headers[k] = fmt.Sprint(v)
	}
	headers[dumpVersionHeader] = DumpVersion
	logger.Debug("logged in to catalog", logger.Fields{"url": c.baseURL})
	return headers, nil
}

// ChannelFamilies lists the products and their channel labels.
func (c *Client) ChannelFamilies(ctx context.Context) ([]model.ChannelFamily, error) {
	doc, err := c.dump(ctx, "dump.channel_families", c.systemID)
	if err != nil {
		return nil, err
	}
	families := make([]model.ChannelFamily, 0, len(doc.ChannelFamilies))
	for _, f := range doc.ChannelFamilies {
		families = append(families, model.ChannelFamily{Label: f.Label, Channels: fields(f.ChannelLabels)})
	}
	sort.Slice(families, func(i, j int) bool { return families[i].Label < families[j].Label })
	return families, nil
}

// ChannelPackages returns every package of a channel as fetchable items.
func (c *Client) ChannelPackages(ctx context.Context, label string) ([]model.PackageItem, error) {
	channel, err := c.channel(ctx, label)
	if err != nil {
		return nil, err
	}
	ids := fields(channel.Packages)
	logger.Info("channel package list retrieved", logger.Fields{"channel": label, "packages": len(ids)})

	items := make([]model.PackageItem, 0, len(ids))
	for start := 0; start < len(ids); start += packagesPerCall {
		end := min(start+packagesPerCall, len(ids))
		doc, err := c.dump(ctx, "dump.packages_short", c.systemID, ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, p := range doc.Packages {
			item, err := packageItem(label, p)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// KickstartFiles returns the files of every kickstart tree of a channel.
func (c *Client) KickstartFiles(ctx context.Context, label string) ([]model.PackageItem, error) {
	channel, err := c.channel(ctx, label)
	if err != nil {
		return nil, err
	}
	var items []model.PackageItem
	for _, tree := range fields(channel.KickstartTrees) {
		doc, err := c.dump(ctx, "dump.kickstartable_trees", c.systemID, []string{tree})
		if err != nil {
			return nil, err
		}
		for _, t := range doc.KickstartTrees {
			for _, f := range t.Files {
				if !filepath.IsLocal(t.Label) || !filepath.IsLocal(filepath.FromSlash(f.RelativePath)) {
					logger.Warn("skipping kickstart file outside its tree", logger.Fields{
						"channel": label, "tree": t.Label, "path": f.RelativePath,
					})
					continue
				}
				size, err := strconv.ParseInt(f.Size, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: size of %s/%s: %q", pkgerrors.ErrCatalogResponse, t.Label, f.RelativePath, f.Size)
				}
				items = append(items, model.PackageItem{
					Name:      f.RelativePath,
					Size:      size,
					Checksum:  model.Checksum{Type: "md5", Value: f.MD5Sum},
					FetchName: f.RelativePath,
					FetchPath: model.KickstartPath(label, t.Label, f.RelativePath),
					FileName:  model.KickstartFileName(t.Label, f.RelativePath),
				})
			}
		}
		logger.Info("kickstart tree metadata retrieved", logger.Fields{"channel": label, "tree": tree})
	}
	return items, nil
}

// Repodata downloads a repodata side file of a channel. A missing file
// yields ErrRepodataNotFound.
func (c *Client) Repodata(ctx context.Context, label, name string) ([]byte, error) {
	body, status, err := c.getRepodata(ctx, label, name, false)
	if err == nil && status == http.StatusUnauthorized {
		body, status, err = c.getRepodata(ctx, label, name, true)
	}
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", name, pkgerrors.ErrRepodataNotFound)
	default:
		return nil, fmt.Errorf("%s: unexpected status code: %d: %w", name, status, pkgerrors.ErrDownloadFailed)
	}
}

func (c *Client) getRepodata(ctx context.Context, label, name string, refresh bool) ([]byte, int, error) {
	headers, err := c.creds.Headers(ctx, refresh)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+model.RepodataPath(label, name), http.NoBody)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if err := (auth.HeaderAuth{Headers: headers}).Apply(req); err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", pkgerrors.ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}
	body, err := readLimited(resp.Body, name)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) channel(ctx context.Context, label string) (*dumpChannel, error) {
	if label == "" {
		return nil, pkgerrors.ErrNoChannelLabel
	}
	doc, err := c.dump(ctx, "dump.channels", c.systemID, []string{label})
	if err != nil {
		return nil, err
	}
	for i := range doc.Channels {
		if doc.Channels[i].Label == label || len(doc.Channels) == 1 {
			return &doc.Channels[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", pkgerrors.ErrUnknownChannel, label)
}

// invoke performs an XML-RPC call and returns its decoded result.
func (c *Client) invoke(ctx context.Context, endpoint, method string, args ...interface{}) (interface{}, error) {
	data, err := c.post(ctx, endpoint, method, args...)
	if err != nil {
		return nil, err
	}
	return decodeResponse(data)
}

// dump performs a dump call. The server answers with a bare export document,
// or with a method response that carries either a fault or the document.
func (c *Client) dump(ctx context.Context, method string, args ...interface{}) (*dumpDocument, error) {
	data, err := c.post(ctx, dumpEndpoint, method, args...)
	if err != nil {
		return nil, err
	}
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}
	if root == "methodResponse" {
		res, err := decodeResponse(data)
		if err != nil {
			return nil, pkgerrors.Wrap(err, method)
		}
		switch v := res.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			return nil, fmt.Errorf("%w: %s returned %T", pkgerrors.ErrCatalogResponse, method, res)
		}
	}
	doc, err := parseDump(data, c.supported)
	if err != nil {
		return nil, pkgerrors.Wrap(err, method)
	}
	return doc, nil
}

func (c *Client) post(ctx context.Context, endpoint, method string, args ...interface{}) ([]byte, error) {
	body, err := xmlrpc.EncodeMethodCall(method, args...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "encode %s", method)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set(dumpVersionHeader, DumpVersion)

	logger.Debug("catalog call", logger.Fields{"method": method, "endpoint": endpoint})
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s", method)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", pkgerrors.ErrCatalogResponse, method, resp.StatusCode)
	}

	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrCatalogResponse, err)
		}
		defer gz.Close()
		r = gz
	}
	return readLimited(r, method)
}

// readLimited reads r fully, failing once more than maxResponseSize bytes
// arrive.
func readLimited(r io.Reader, what string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read %s", what)
	}
	if int64(len(data)) > maxResponseSize {
		return nil, fmt.Errorf("%s: %w", what, pkgerrors.ErrResponseTooLarge)
	}
	return data, nil
}

func packageItem(label string, p dumpPackageShort) (model.PackageItem, error) {
	size, err := strconv.ParseInt(p.Size, 10, 64)
	if err != nil {
		return model.PackageItem{}, fmt.Errorf("%w: size of %s: %q", pkgerrors.ErrCatalogResponse, p.ID, p.Size)
	}
	fetchName := model.PackageFetchName(p.Name, p.Epoch, p.Version, p.Release, p.Arch)
	return model.PackageItem{
		Name:      p.Name,
		Epoch:     p.Epoch,
		Version:   p.Version,
		Release:   p.Release,
		Arch:      p.Arch,
		Size:      size,
		Checksum:  model.Checksum{Type: "md5", Value: p.MD5Sum},
		FetchName: fetchName,
		FetchPath: model.PackagePath(label, fetchName),
		FileName:  model.PackageFileName(p.Name, p.Version, p.Release, p.Arch),
	}, nil
}
