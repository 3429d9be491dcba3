//go:build integration

package main

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChannel = "rhel-x86_64-server-5"
	authToken   = "c2Vzc2lvbg=="
)

var methodName = regexp.MustCompile(`<methodName>([^<]+)</methodName>`)

type rpm struct {
	name, epoch, version, release, arch string
	body                                string
}

func (p rpm) fetchName() string {
	return fmt.Sprintf("%s-%s-%s:%s.%s.rpm", p.name, p.version, p.release, p.epoch, p.arch)
}

func (p rpm) fileName() string {
	return fmt.Sprintf("%s-%s-%s.%s.rpm", p.name, p.version, p.release, p.arch)
}

// fakeSatellite serves the catalog endpoints and package content.
type fakeSatellite struct {
	t        *testing.T
	packages []rpm
	mu       sync.Mutex
	fetches  map[string]int
	logins   int
}

func newFakeSatellite(t *testing.T, packages []rpm) (*fakeSatellite, *httptest.Server) {
	s := &fakeSatellite{t: t, packages: packages, fetches: map[string]int{}}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *fakeSatellite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		m := methodName.FindSubmatch(body)
		if m == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, s.rpc(string(m[1])))
	case strings.Contains(r.URL.Path, "/getPackage/"):
		if r.Header.Get("X-RHN-Auth") != authToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		for _, p := range s.packages {
			if p.fetchName() == name {
				s.mu.Lock()
				s.fetches[p.fileName()]++
				s.mu.Unlock()
				_, _ = io.WriteString(w, p.body)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *fakeSatellite) rpc(method string) string {
	switch method {
	case "authentication.check":
		return `<?xml version="1.0"?><methodResponse><params><param><value><int>1</int></value></param></params></methodResponse>`
	case "authentication.login":
		s.mu.Lock()
		s.logins++
		s.mu.Unlock()
		return `<?xml version="1.0"?><methodResponse><params><param><value><struct>` +
			`<member><name>X-RHN-Auth</name><value><string>` + authToken + `</string></value></member>` +
			`</struct></value></param></params></methodResponse>`
	case "dump.channel_families":
		return `<rhn-satellite version="3.4"><rhn-channel-families>` +
			`<rhn-channel-family label="rhel-server" channel-labels="` + testChannel + `"/>` +
			`</rhn-channel-families></rhn-satellite>`
	case "dump.channels":
		ids := make([]string, len(s.packages))
		for i := range s.packages {
			ids[i] = fmt.Sprintf("rhn-package-%d", i)
		}
		return `<rhn-satellite version="3.4"><rhn-channels>` +
			`<rhn-channel label="` + testChannel + `" packages="` + strings.Join(ids, " ") + `"/>` +
			`</rhn-channels></rhn-satellite>`
	case "dump.packages_short":
		var b strings.Builder
		b.WriteString(`<rhn-satellite version="3.4"><rhn-packages-short>`)
		for i, p := range s.packages {
			sum := md5.Sum([]byte(p.body))
			fmt.Fprintf(&b, `<rhn-package-short id="rhn-package-%d" name="%s" epoch="%s" version="%s" release="%s" package-arch="%s" package-size="%d" md5sum="%s"/>`,
				i, p.name, p.epoch, p.version, p.release, p.arch, len(p.body), hex.EncodeToString(sum[:]))
		}
		b.WriteString(`</rhn-packages-short></rhn-satellite>`)
		return b.String()
	}
	s.t.Errorf("unexpected method %s", method)
	return ""
}

func writeConfig(t *testing.T, url, basePath string, extra string) string {
	t.Helper()
	dir := t.TempDir()
	systemID := filepath.Join(dir, "systemid")
	require.NoError(t, os.WriteFile(systemID, []byte("<params/>"), 0o600))
	cfgPath := filepath.Join(dir, "grinder.yml")
	content := fmt.Sprintf(`url: %s
systemid: %s
basepath: %s
parallel: 2
channels:
  - label: %s
    relpath: rhel5
settings:
  retry_delay: 0s
  createrepo: false
%s`, url, systemID, basePath, testChannel, extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSync_EndToEnd(t *testing.T) {
	packages := []rpm{
		{name: "bash", version: "3.2", release: "24.el5", arch: "x86_64", body: "bash 3.2-24"},
		{name: "bash", version: "3.2", release: "32.el5", arch: "x86_64", body: "bash 3.2-32"},
		{name: "perl", epoch: "4", version: "5.8.8", release: "27.el5", arch: "x86_64", body: "perl"},
	}
	sat, srv := newFakeSatellite(t, packages)
	base := t.TempDir()
	cfgPath := writeConfig(t, srv.URL, base, "")

	_, err := runCLI(t, "--config", cfgPath, "sync", "--no-progress")
	require.NoError(t, err)

	dir := filepath.Join(base, "rhel5")
	assert.FileExists(t, filepath.Join(dir, "bash-3.2-32.el5.x86_64.rpm"))
	assert.FileExists(t, filepath.Join(dir, "perl-5.8.8-27.el5.x86_64.rpm"))
	assert.NoFileExists(t, filepath.Join(dir, "bash-3.2-24.el5.x86_64.rpm"), "only the latest build is fetched")

	// A second run finds verified files and transfers nothing.
	_, err = runCLI(t, "--config", cfgPath, "sync", "--no-progress")
	require.NoError(t, err)
	sat.mu.Lock()
	defer sat.mu.Unlock()
	assert.Equal(t, 1, sat.fetches["bash-3.2-32.el5.x86_64.rpm"])
	assert.Equal(t, 1, sat.fetches["perl-5.8.8-27.el5.x86_64.rpm"])
}

func TestSync_AllVersionsThenPrune(t *testing.T) {
	packages := []rpm{
		{name: "bash", version: "3.2", release: "24.el5", arch: "x86_64", body: "old"},
		{name: "bash", version: "3.2", release: "32.el5", arch: "x86_64", body: "new"},
	}
	_, srv := newFakeSatellite(t, packages)
	base := t.TempDir()
	cfgPath := writeConfig(t, srv.URL, base, "")

	_, err := runCLI(t, "--config", cfgPath, "sync", "--all", "--no-progress")
	require.NoError(t, err)
	dir := filepath.Join(base, "rhel5")
	assert.FileExists(t, filepath.Join(dir, "bash-3.2-24.el5.x86_64.rpm"))

	out, err := runCLI(t, "--config", cfgPath, "prune", dir, "--keep", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "bash-3.2-24.el5.x86_64.rpm")
	assert.NoFileExists(t, filepath.Join(dir, "bash-3.2-24.el5.x86_64.rpm"))
	assert.FileExists(t, filepath.Join(dir, "bash-3.2-32.el5.x86_64.rpm"))
}

func TestSync_Errors(t *testing.T) {
	_, srv := newFakeSatellite(t, nil)
	cfgPath := writeConfig(t, srv.URL, t.TempDir(), "")

	_, err := runCLI(t, "--config", cfgPath, "sync", "--no-progress", "no-such-channel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-channel")

	_, err = runCLI(t, "--config", cfgPath, "sync", "--all", "--removeold")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestSync_PostSyncHook(t *testing.T) {
	packages := []rpm{{name: "bash", version: "3.2", release: "32.el5", arch: "x86_64", body: "new"}}
	_, srv := newFakeSatellite(t, packages)
	base := t.TempDir()
	marker := filepath.Join(base, "hook-ran")
	script := filepath.Join(base, "post.tengo")
	require.NoError(t, os.WriteFile(script, []byte(`
os := import("os")
err := ""
if downloads != 1 { err = "unexpected download count" }
f := os.create(savePath + "/../hook-ran")
f.close()
`), 0o644))
	cfgPath := writeConfig(t, srv.URL, base, "  hooks:\n    post_sync: "+script+"\n")

	_, err := runCLI(t, "--config", cfgPath, "sync", "--no-progress")
	require.NoError(t, err)
	assert.FileExists(t, marker)
}

func TestChannels(t *testing.T) {
	_, srv := newFakeSatellite(t, nil)
	cfgPath := writeConfig(t, srv.URL, t.TempDir(), "")

	out, err := runCLI(t, "--config", cfgPath, "channels")
	require.NoError(t, err)
	assert.Contains(t, out, "Product : rhel-server")
	assert.Contains(t, out, testChannel)
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "grinder version")
}
