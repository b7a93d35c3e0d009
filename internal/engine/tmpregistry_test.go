package engine

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempPathFor(t *testing.T) {
	dst := filepath.Join("/replica", "docs", "report.pdf")
	tmp := tempPathFor(dst)

	assert.Equal(t, filepath.Dir(dst), filepath.Dir(tmp), "temp file lives beside its target")
	assert.Regexp(t, regexp.MustCompile(`^\.report\.pdf\.[0-9a-f]{8}\.mirror-tmp$`), filepath.Base(tmp))
	assert.True(t, IsTempName(filepath.Base(tmp)))
	assert.NotEqual(t, tmp, tempPathFor(dst), "each call is unique")
}

func TestIsTempName(t *testing.T) {
	assert.True(t, IsTempName(".a.1234abcd.mirror-tmp"))
	assert.False(t, IsTempName("a.mirror-tmp"))
	assert.False(t, IsTempName(".hidden"))
	assert.False(t, IsTempName("report.pdf"))
}

func TestTmpRegistry(t *testing.T) {
	dir := t.TempDir()
	r := &tmpRegistry{}

	kept := writeFile(t, dir, ".a.00000000"+TempSuffix, "partial", baseTime)
	done := writeFile(t, dir, ".b.11111111"+TempSuffix, "partial", baseTime)
	r.add(kept)
	r.add(done)
	r.add(filepath.Join(dir, "never-written"))
	assert.Equal(t, 3, r.len())

	r.remove(done)
	assert.Equal(t, 2, r.len())

	assert.Equal(t, 1, r.cleanup(), "only files that exist count as removed")
	assert.Equal(t, 0, r.len())
	assert.NoFileExists(t, kept)
	assert.FileExists(t, done, "removed paths are left alone")

	assert.Zero(t, r.cleanup(), "cleanup on an empty registry is a no-op")
}

func TestCleanupTempFiles(t *testing.T) {
	path := writeFile(t, t.TempDir(), ".x.22222222"+TempSuffix, "partial", baseTime)
	inflight.add(path)

	assert.GreaterOrEqual(t, CleanupTempFiles(), 1)
	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}
