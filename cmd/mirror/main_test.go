package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mirror/internal/config"
	"github.com/bamsammich/mirror/internal/engine"
	"github.com/bamsammich/mirror/internal/filter"
)

func ptr[T any](v T) *T { return &v }

func TestBuildOptions(t *testing.T) {
	excludes, err := filter.New("*.tmp")
	require.NoError(t, err)

	f := &flags{
		compare:     "xxhash",
		retries:     5,
		retryDelay:  time.Second,
		mtimeWindow: 2 * time.Second,
		bwLimit:     "10M",
		dryRun:      true,
	}
	opts, err := buildOptions([]string{"src", "dst", "1.5", "log"}, f, excludes)
	require.NoError(t, err)

	assert.Equal(t, "src", opts.Source)
	assert.Equal(t, "dst", opts.Replica)
	assert.Equal(t, 1500*time.Millisecond, opts.Interval)
	assert.Equal(t, engine.CompareXXHash, opts.Compare)
	assert.Equal(t, 5, opts.Retries)
	assert.Equal(t, time.Second, opts.RetryDelay)
	assert.Equal(t, 2*time.Second, opts.ModTimeWindow)
	assert.Equal(t, int64(10*1024*1024), opts.BWLimit)
	assert.True(t, opts.DryRun)
	assert.Equal(t, []string{"*.tmp"}, opts.Excludes)
}

func TestBuildOptions_Invalid(t *testing.T) {
	excludes, _ := filter.New()

	tests := []struct {
		name  string
		args  []string
		flags flags
		field string
	}{
		{"interval not a number", []string{"s", "d", "soon", "l"}, flags{compare: "meta"}, "interval"},
		{"bad compare", []string{"s", "d", "1", "l"}, flags{compare: "md5"}, "compare mode"},
		{"bad bwlimit", []string{"s", "d", "1", "l"}, flags{compare: "meta", bwLimit: "fast"}, "bandwidth limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildOptions(tt.args, &tt.flags, excludes)
			var cfgErr *engine.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	require.NoError(t, cmd.Flags().Parse([]string{"--retries", "7"}))

	var f flags
	f.retries = 7
	excludes, _ := filter.New()

	err := applyConfigDefaults(cmd, config.DefaultsConfig{
		Compare:     ptr("blake3"),
		Retries:     ptr(1),
		RetryDelay:  ptr("2s"),
		MtimeWindow: ptr("1s"),
		HashCache:   ptr("/tmp/digests.db"),
		Exclude:     []string{".git/"},
	}, &f, excludes)
	require.NoError(t, err)

	assert.Equal(t, "blake3", f.compare)
	assert.Equal(t, 7, f.retries, "flag set on the command line wins")
	assert.Equal(t, 2*time.Second, f.retryDelay)
	assert.Equal(t, time.Second, f.mtimeWindow)
	assert.Equal(t, "/tmp/digests.db", f.hashCache)
	assert.Equal(t, []string{".git/"}, excludes.Patterns())
}

func TestApplyConfigDefaults_BadDuration(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	excludes, _ := filter.New()

	err := applyConfigDefaults(cmd, config.DefaultsConfig{RetryDelay: ptr("soon")}, &flags{}, excludes)
	var cfgErr *engine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRun_Once(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "replica")
	logPath := filepath.Join(t.TempDir(), "mirror.log")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "b.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "skip.swp"), []byte("x"), 0o644))

	var stderr bytes.Buffer
	code := run([]string{"--once", "--exclude", "*.swp", src, dst, "1", logPath}, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	got, err := os.ReadFile(filepath.Join(dst, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assert.NoFileExists(t, filepath.Join(dst, "skip.swp"))

	logData, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logData), `"msg":"mirror.event"`)
	assert.Contains(t, string(logData), `"msg":"mirror.cycle"`)
	assert.Contains(t, string(logData), `"path":"a/b.txt"`)
	assert.Contains(t, stderr.String(), "cycle 1 ✓")
}

func TestRun_CreatesLogDirectory(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	src := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "logs", "nested", "mirror.log")

	var stderr bytes.Buffer
	code := run([]string{"--once", src, t.TempDir(), "1", logPath}, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.FileExists(t, logPath)
}

func TestRun_ConfigErrors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	src := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "mirror.log")
	notADir := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(notADir, nil, 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"missing args", []string{src}},
		{"missing source", []string{filepath.Join(src, "nope"), t.TempDir(), "1", logPath}},
		{"replica inside source", []string{src, filepath.Join(src, "inner"), "1", logPath}},
		{"zero interval", []string{src, t.TempDir(), "0", logPath}},
		{"negative retries", []string{"--retries", "-1", src, t.TempDir(), "1", logPath}},
		{"bad compare", []string{"--compare", "sha1", src, t.TempDir(), "1", logPath}},
		{"bad exclude", []string{"--exclude", "[", src, t.TempDir(), "1", logPath}},
		{"unwritable log", []string{src, t.TempDir(), "1", filepath.Join(notADir, "logs", "mirror.log")}},
		{"verbose and quiet", []string{"-v", "-q", src, t.TempDir(), "1", logPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			assert.Equal(t, exitConfig, run(tt.args, &stderr))
			assert.Contains(t, stderr.String(), "Error:")
		})
	}
	assert.NoDirExists(t, filepath.Join(src, "inner"))
}

func TestRun_Version(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, exitOK, run([]string{"--version"}, &stderr))
	assert.Contains(t, stderr.String(), "mirror dev")
}
