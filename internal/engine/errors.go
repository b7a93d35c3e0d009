package engine

import (
	"errors"
	"io/fs"
	"syscall"
)

var (
	// ErrNotEmpty is returned when a delete-dir finds the directory still has
	// entries. The engine never removes contents it did not plan to remove.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrSourceVanished is returned when a copy's source disappeared between
	// the scan and the copy.
	ErrSourceVanished = errors.New("source vanished")
)

// ConfigError reports an invalid configuration detected before the first
// cycle. It is always fatal.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "invalid " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

var transientErrnos = []syscall.Errno{
	syscall.EAGAIN,
	syscall.EBUSY,
	syscall.EDQUOT,
	syscall.EINTR,
	syscall.EIO,
	syscall.ENOSPC,
	syscall.ETXTBSY,
}

// isTransient reports whether err may clear up on its own (a locked or busy
// file, a permission flap, a full disk) and is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, ErrNotEmpty) || errors.Is(err, ErrSourceVanished) {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
