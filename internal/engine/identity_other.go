//go:build !unix

package engine

import "io/fs"

type devIno struct{}

// dirIdentity is unavailable without stat(2); cycle detection is disabled
// and symlinks, which are never followed, are the only loop source.
func dirIdentity(fs.FileInfo) (devIno, bool) {
	return devIno{}, false
}
