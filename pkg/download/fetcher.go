package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/cperrin88/grinder/internal/logger"
	"github.com/cperrin88/grinder/pkg/auth"
	pkgerrors "github.com/cperrin88/grinder/pkg/errors"
	"github.com/cperrin88/grinder/pkg/fsutil"
	"github.com/cperrin88/grinder/pkg/model"
)

// DefaultRetries is the number of extra attempts after the first one.
const DefaultRetries = 2

// Options configure an HTTPFetcher.
type Options struct {
	// BaseURL is prefixed to each item's FetchPath.
	BaseURL string
	// Dir is the save path items are stored under.
	Dir string
	// Retries is the retry budget; an item is attempted at most Retries+1 times.
	Retries int
	// RetryDelay is the initial pause between attempts. Zero retries at once.
	RetryDelay time.Duration
	// Timeout bounds a single attempt including the body read. Zero disables it.
	Timeout   time.Duration
	UserAgent string
}

// HTTPFetcher downloads catalog items over HTTP and verifies them against
// their declared size and checksum.
type HTTPFetcher struct {
	client *http.Client
	creds  auth.Provider
	opts   Options
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client, creds auth.Provider, opts Options) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "grinder/1.0"
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &HTTPFetcher{client: client, creds: creds, opts: opts}
}

// Fetch runs attempts until one succeeds or the retry budget is spent, and
// returns the last outcome. Every attempt starts over with the on-disk check.
func (f *HTTPFetcher) Fetch(ctx context.Context, item model.PackageItem) model.FetchResult {
	if _, err := newHash(item.Checksum.Type); err != nil {
		return model.FetchResult{Outcome: model.OutcomeError, Attempts: 1, Err: err}
	}
	if !filepath.IsLocal(filepath.FromSlash(item.FileName)) {
		return model.FetchResult{
			Outcome:  model.OutcomeError,
			Attempts: 1,
			Err:      fmt.Errorf("%q: %w", item.FileName, pkgerrors.ErrUnsafePath),
		}
	}

	var delay *backoff.ExponentialBackOff
	if f.opts.RetryDelay > 0 {
		delay = backoff.NewExponentialBackOff()
		delay.InitialInterval = f.opts.RetryDelay
		delay.MaxInterval = 30 * f.opts.RetryDelay
		delay.Reset()
	}

	fields := logger.Fields{"item": item.String()}
	var res model.FetchResult
	attempts := 0
	for budget := f.opts.Retries; ; budget-- {
		attempts++
		res = f.attempt(ctx, item)
		if !res.Outcome.Retryable() || budget <= 0 || ctx.Err() != nil {
			break
		}
		logger.Warn("fetch failed, retrying", fields.With(logger.Fields{
			"outcome":   string(res.Outcome),
			"attempt":   attempts,
			"remaining": budget,
			"error":     errString(res.Err),
		}))
		if delay != nil && !sleep(ctx, delay.NextBackOff()) {
			break
		}
	}
	res.Attempts = attempts
	return res
}

func (f *HTTPFetcher) attempt(ctx context.Context, item model.PackageItem) model.FetchResult {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	path := filepath.Join(f.opts.Dir, filepath.FromSlash(item.FileName))
	ok, err := verifyExisting(path, item)
	if err != nil {
		return failed(model.OutcomeError, err)
	}
	if ok {
		logger.Debug("already present", logger.Fields{"item": item.String()})
		return model.FetchResult{Outcome: model.OutcomeNoop}
	}
	// a stale or damaged copy must not survive a failed download
	if err := fsutil.RemoveIfExists(path); err != nil {
		return failed(model.OutcomeError, pkgerrors.Wrap(err, "remove stale file"))
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return failed(model.OutcomeError, err)
	}

	resp, err := f.get(ctx, item)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrUnauthorized) {
			return failed(model.OutcomeUnauthorized, err)
		}
		return failed(model.OutcomeError, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return store(resp.Body, path, item)
}

// get issues the request. A 401 forces one credential refresh and one
// immediate re-request before the attempt is reported unauthorized.
func (f *HTTPFetcher) get(ctx context.Context, item model.PackageItem) (*http.Response, error) {
	resp, err := f.do(ctx, item, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		logger.Debug("unauthorized, refreshing credentials", logger.Fields{"item": item.String()})
		resp, err = f.do(ctx, item, true)
		if err != nil {
			return nil, err
		}
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", item.FetchPath, pkgerrors.ErrUnauthorized)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, pkgerrors.ErrDownloadFailed)
	}
}

func (f *HTTPFetcher) do(ctx context.Context, item model.PackageItem, refresh bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.opts.BaseURL+item.FetchPath, http.NoBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if f.creds != nil {
		headers, err := f.creds.Headers(ctx, refresh)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to obtain credentials")
		}
		if err := (auth.HeaderAuth{Headers: headers}).Apply(req); err != nil {
			return nil, err
		}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrDownloadFailed, err)
	}
	return resp, nil
}

// store streams body into a temp file next to path while hashing it, then
// verifies size and digest. Only a verified file is renamed into place.
func store(body io.Reader, path string, item model.PackageItem) model.FetchResult {
	h, err := newHash(item.Checksum.Type)
	if err != nil {
		return failed(model.OutcomeError, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "dl-*.tmp")
	if err != nil {
		return failed(model.OutcomeError, pkgerrors.Wrap(err, "could not create temp file"))
	}
	tmpPath := tmp.Name()
	discard := func() { _ = tmp.Close(); _ = os.Remove(tmpPath) }

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				discard()
				return model.FetchResult{Outcome: model.OutcomeError, Bytes: written, Err: pkgerrors.Wrap(werr, "could not write file")}
			}
			h.Write(buf[:n])
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			discard()
			return model.FetchResult{Outcome: model.OutcomeError, Bytes: written, Err: pkgerrors.Wrap(rerr, "read body")}
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return failed(model.OutcomeError, pkgerrors.Wrap(err, "could not close file"))
	}

	if written != item.Size {
		_ = os.Remove(tmpPath)
		return model.FetchResult{
			Outcome: model.OutcomeSizeMismatch,
			Bytes:   written,
			Err:     fmt.Errorf("got %d bytes, want %d: %w", written, item.Size, pkgerrors.ErrSizeMismatch),
		}
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != normalizeHex(item.Checksum.Value) {
		_ = os.Remove(tmpPath)
		return model.FetchResult{
			Outcome: model.OutcomeChecksumMismatch,
			Bytes:   written,
			Err:     fmt.Errorf("got %s %s, want %s: %w", item.Checksum.Type, got, item.Checksum.Value, pkgerrors.ErrFileHashMismatch),
		}
	}

	if err := fsutil.Move(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return failed(model.OutcomeError, pkgerrors.Wrap(err, "could not finalize file"))
	}
	if err := os.Chmod(path, fsutil.FileModeDefault); err != nil {
		_ = os.Remove(path)
		return failed(model.OutcomeError, pkgerrors.Wrap(err, "could not set permissions"))
	}
	return model.FetchResult{Outcome: model.OutcomeDownloaded, Bytes: written}
}

func failed(outcome model.Outcome, err error) model.FetchResult {
	return model.FetchResult{Outcome: outcome, Err: err}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
