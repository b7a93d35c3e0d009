package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bamsammich/mirror/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configDir := filepath.Join(dir, "mirror")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	path := filepath.Join(configDir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Compare)
	assert.Nil(t, cfg.Defaults.Retries)
	assert.Empty(t, cfg.Defaults.Exclude)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	writeConfig(t, dir, `
[defaults]
compare = "blake3"
retries = 5
retry_delay = "2s"
mtime_window = "2s"
bwlimit = "10MB"
hash_cache = "/var/cache/mirror/digests.db"
exclude = ["*.swp", ".git/"]
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Compare)
	assert.Equal(t, "blake3", *cfg.Defaults.Compare)

	require.NotNil(t, cfg.Defaults.Retries)
	assert.Equal(t, 5, *cfg.Defaults.Retries)

	require.NotNil(t, cfg.Defaults.RetryDelay)
	assert.Equal(t, "2s", *cfg.Defaults.RetryDelay)

	require.NotNil(t, cfg.Defaults.MtimeWindow)
	assert.Equal(t, "2s", *cfg.Defaults.MtimeWindow)

	require.NotNil(t, cfg.Defaults.BWLimit)
	assert.Equal(t, "10MB", *cfg.Defaults.BWLimit)

	require.NotNil(t, cfg.Defaults.HashCache)
	assert.Equal(t, "/var/cache/mirror/digests.db", *cfg.Defaults.HashCache)

	assert.Equal(t, []string{"*.swp", ".git/"}, cfg.Defaults.Exclude)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	writeConfig(t, dir, `
[defaults]
retries = 0
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Retries)
	assert.Equal(t, 0, *cfg.Defaults.Retries)

	// Unset fields should remain nil.
	assert.Nil(t, cfg.Defaults.Compare)
	assert.Nil(t, cfg.Defaults.BWLimit)
	assert.Nil(t, cfg.Defaults.HashCache)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	writeConfig(t, dir, `[defaults
retries = `)

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[defaults]
retires = 3
`)

	_, err := config.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defaults.retires")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/mirror/config.toml", config.Path())
}

func TestPath_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "mirror", "config.toml"), config.Path())
}
