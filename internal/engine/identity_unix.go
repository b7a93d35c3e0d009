//go:build unix

package engine

import (
	"io/fs"
	"syscall"
)

// devIno uniquely identifies a directory for cycle detection.
type devIno struct {
	dev uint64
	ino uint64
}

func dirIdentity(info fs.FileInfo) (devIno, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return devIno{}, false
	}
	return devIno{dev: uint64(st.Dev), ino: st.Ino}, true //nolint:gosec,unconvert // G115: dev_t is int32 on darwin, always non-negative
}
