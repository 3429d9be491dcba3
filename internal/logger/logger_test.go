package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, level string, format OutputFormat, fn func()) string {
	t.Helper()
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger(level, format)
	fn()
	return buf.String()
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func()
		contains []string
		excludes []string
	}{
		{
			name:     "info log",
			level:    "info",
			logFn:    func() { Info("mirror started") },
			contains: []string{"mirror started", "level=INFO"},
		},
		{
			name:     "debug log with debug level",
			level:    "debug",
			logFn:    func() { Debug("fetching item") },
			contains: []string{"fetching item", "level=DEBUG"},
		},
		{
			name:     "debug log with info level",
			level:    "info",
			logFn:    func() { Debug("fetching item") },
			excludes: []string{"fetching item"},
		},
		{
			name:     "warn log with fields",
			level:    "warn",
			logFn:    func() { Warn("checksum mismatch", Fields{"file": "a.rpm", "attempt": 2}) },
			contains: []string{"checksum mismatch", "level=WARN", "file=a.rpm", "attempt=2"},
		},
		{
			name:     "success log",
			level:    "info",
			logFn:    func() { Success("channel synced") },
			contains: []string{"channel synced", "status=success"},
		},
		{
			name:     "formatted debug with fields",
			level:    "debug",
			logFn:    func() { DebugfWithFields(Fields{"worker": 1}, "popped %s", "a.rpm") },
			contains: []string{"popped a.rpm", "worker=1"},
		},
		{
			name:     "unknown level falls back to info",
			level:    "verbose",
			logFn:    func() { Debug("hidden"); Info("shown") },
			contains: []string{"shown"},
			excludes: []string{"hidden"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, tt.level, FormatText, tt.logFn)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, notWant := range tt.excludes {
				assert.NotContains(t, out, notWant)
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	out := captureOutput(t, "info", FormatJSON, func() {
		Info("sync done", Fields{"channel": "rhel-x86_64-server-5", "errors": 0})
	})
	assert.Contains(t, out, `"msg":"sync done"`)
	assert.Contains(t, out, `"level":"INFO"`)
	assert.Contains(t, out, `"channel":"rhel-x86_64-server-5"`)
	assert.Contains(t, out, `"errors":0`)
}

func TestSetOutputFormatKeepsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetTestOutput(buf)
	defer UnsetTestOutput()

	logger = nil
	InitLogger("debug", FormatText)
	SetOutputFormat(FormatJSON)
	Debug("still visible")
	assert.Contains(t, buf.String(), `"msg":"still visible"`)

	buf.Reset()
	SetLevel("error")
	Warn("dropped")
	assert.Empty(t, buf.String())
}

func TestGetLogger_InitializesIfNil(t *testing.T) {
	logger = nil
	assert.NotPanics(t, func() {
		assert.NotNil(t, GetLogger())
	})
}

func TestFieldsWith(t *testing.T) {
	base := Fields{"run": "abc"}
	ext := base.With(Fields{"channel": "c1"})
	assert.Len(t, base, 1)
	assert.Equal(t, Fields{"run": "abc", "channel": "c1"}, ext)
}

func TestMergeFieldsOrdered(t *testing.T) {
	attrs := mergeFields(Fields{"b": 2, "a": 1})
	assert.Equal(t, []interface{}{"a", 1, "b", 2}, attrs)
}
