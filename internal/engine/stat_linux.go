//go:build linux

package engine

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// setModTime stamps mtime onto an open file, leaving atime untouched. It must
// run after the last write to f.
func setModTime(f *os.File, mtime time.Time) error {
	times := []unix.Timespec{
		{Nsec: unix.UTIME_OMIT},
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(int(f.Fd()), "", times, unix.AT_EMPTY_PATH); err != nil {
		// Fallback: some systems don't support AT_EMPTY_PATH.
		if err2 := unix.UtimesNanoAt(unix.AT_FDCWD, f.Name(), times, 0); err2 != nil {
			return fmt.Errorf("utimensat: %w", err)
		}
	}
	return nil
}

// changeStamp returns the inode number and status-change time of a file.
// ctime moves on every write, chmod or utimes and cannot be set back from
// user space, so together with the inode it catches a rewrite that restored
// the old size and mtime.
func changeStamp(info fs.FileInfo) (ino uint64, ctimeNano int64, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return st.Ino, st.Ctim.Nano(), true
}
