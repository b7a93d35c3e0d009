//go:build linux

package platform

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// maxChunk bounds a single copy_file_range/sendfile call.
const maxChunk = 1 << 30

// CopyFile copies everything from src, read from its start, into the empty
// file dst. It tries copy_file_range, then sendfile, then plain read/write,
// falling through only when the kernel or filesystem does not support the
// faster call. The copy runs until EOF, so a source that grew since it was
// scanned is copied whole.
func CopyFile(dst, src *os.File) (CopyResult, error) {
	if info, err := src.Stat(); err == nil {
		preallocate(dst, info.Size())
	}

	result, err := copyFileRange(dst, src)
	if err == nil || !isFallbackErr(err) {
		return result, err
	}

	result, err = copySendfile(dst, src)
	if err == nil || !isFallbackErr(err) {
		return result, err
	}

	return copyReadWrite(dst, src)
}

//nolint:gosec // G115: fd values are small non-negative integers
func copyFileRange(dst, src *os.File) (CopyResult, error) {
	var roff, woff int64
	var total int64
	for {
		n, err := unix.CopyFileRange(int(src.Fd()), &roff, int(dst.Fd()), &woff, maxChunk, 0)
		if err != nil {
			if total == 0 {
				return CopyResult{}, err
			}
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: total, Method: CopyFileRange}, nil
		}
		total += int64(n)
	}
}

//nolint:gosec // G115: fd values are small non-negative integers
func copySendfile(dst, src *os.File) (CopyResult, error) {
	var offset int64
	var total int64
	for {
		n, err := unix.Sendfile(int(dst.Fd()), int(src.Fd()), &offset, maxChunk)
		if err != nil {
			if total == 0 {
				return CopyResult{}, err
			}
			return CopyResult{BytesWritten: total, Method: Sendfile}, err
		}
		if n == 0 {
			return CopyResult{BytesWritten: total, Method: Sendfile}, nil
		}
		total += int64(n)
	}
}

// preallocate attempts to pre-allocate disk space. Errors are ignored as
// fallocate is not supported on all filesystems.
//
//nolint:gosec // G115: fd values are small non-negative integers
func preallocate(fd *os.File, size int64) {
	if size <= 0 {
		return
	}
	//nolint:errcheck // fallocate is advisory; not supported on all filesystems
	unix.Fallocate(int(fd.Fd()), 0, 0, size)
}

// isFallbackErr returns true if err should trigger a fallback to the next copy strategy.
func isFallbackErr(err error) bool {
	return errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EXDEV) ||
		errors.Is(err, unix.EINVAL) ||
		errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.EOPNOTSUPP)
}
