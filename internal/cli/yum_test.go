package cli

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cperrin88/grinder/pkg/errors"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func yumRepoServer(t *testing.T, rpms map[string]string) *httptest.Server {
	t.Helper()
	var primary bytes.Buffer
	fmt.Fprintf(&primary, `<metadata packages="%d">`, len(rpms))
	for href, body := range rpms {
		fmt.Fprintf(&primary, `<package type="rpm"><name>%s</name><arch>noarch</arch>`+
			`<version epoch="0" ver="1.0" rel="1"/><checksum type="sha256">%s</checksum>`+
			`<size package="%d"/><location href="%s"/></package>`,
			filepath.Base(href), sha256Hex([]byte(body)), len(body), href)
	}
	primary.WriteString(`</metadata>`)
	repomd := fmt.Sprintf(`<repomd><revision>42</revision><data type="primary">`+
		`<checksum type="sha256">%s</checksum><location href="repodata/primary.xml"/><size>%d</size></data></repomd>`,
		sha256Hex(primary.Bytes()), primary.Len())

	mux := http.NewServeMux()
	mux.HandleFunc("/repodata/repomd.xml", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(repomd)) })
	mux.HandleFunc("/repodata/primary.xml", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(primary.Bytes()) })
	for href, body := range rpms {
		body := body
		mux.HandleFunc("/"+href, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(body)) })
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func useMissingConfig(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grinder.yml")
	ConfigPath = &path
	t.Cleanup(func() { ConfigPath = nil })
}

func TestYumCmd(t *testing.T) {
	useMissingConfig(t)
	srv := yumRepoServer(t, map[string]string{
		"Packages/a-1.0-1.noarch.rpm": "package a",
		"Packages/b-1.0-1.noarch.rpm": "package b",
	})
	dir := t.TempDir()

	cmd := NewYumCmd()
	cmd.SetArgs([]string{"--label", "centos", "--url", srv.URL + "/", "--dir", dir, "-P", "2", "--no-progress"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	repo := filepath.Join(dir, "centos")
	data, err := os.ReadFile(filepath.Join(repo, "Packages", "a-1.0-1.noarch.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "package a", string(data))
	assert.FileExists(t, filepath.Join(repo, "Packages", "b-1.0-1.noarch.rpm"))
	assert.FileExists(t, filepath.Join(repo, "repodata", "primary.xml"))
	repomd, err := os.ReadFile(filepath.Join(repo, "repodata", "repomd.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(repomd), "<revision>42</revision>")
}

func TestYumCmd_RequiredFlags(t *testing.T) {
	useMissingConfig(t)
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "no label", args: []string{"--url", "http://example.com/repo"}, wantErr: errors.ErrNoChannelLabel},
		{name: "no url", args: []string{"--label", "centos"}, wantErr: errors.ErrConfigValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewYumCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			assert.ErrorIs(t, cmd.Execute(), tt.wantErr)
		})
	}
}
