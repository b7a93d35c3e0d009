package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/bamsammich/mirror/internal/event"
	"github.com/bamsammich/mirror/internal/platform"
	"github.com/bamsammich/mirror/internal/stats"
)

// Retry defaults.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// ApplierConfig controls how actions are executed.
type ApplierConfig struct {
	Events     chan<- event.Event
	Stats      *stats.Collector
	Limiter    *rate.Limiter
	Retries    int
	RetryDelay time.Duration
	Cycle      uint64
	DryRun     bool
}

// Applier executes actions against the replica, one at a time.
type Applier struct {
	sleep func(ctx context.Context, d time.Duration) error
	cfg   ApplierConfig
	buf   []byte
}

// NewApplier creates an Applier with the given config.
func NewApplier(cfg ApplierConfig) *Applier {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	a := &Applier{cfg: cfg, sleep: sleepCtx}
	if cfg.Limiter != nil {
		a.buf = make([]byte, 256*1024)
	}
	return a
}

// Apply executes one action, retrying transient failures with exponential
// backoff, and returns (and emits) exactly one event describing the outcome.
// A failed action leaves the replica no worse than before: file writes go to
// a temp file that is only renamed into place once complete.
func (a *Applier) Apply(ctx context.Context, act Action) event.Event {
	ev := event.Event{
		Action: act.Kind.String(),
		Path:   act.RelPath,
		Cycle:  a.cfg.Cycle,
	}

	if a.cfg.DryRun {
		ev.Type = event.ActionSkipped
		ev.Reason = "dry run"
		return a.finish(ev, act)
	}

	var err error
	for {
		ev.Attempts++
		err = a.execute(ctx, act)
		if err == nil || !isTransient(err) || ev.Attempts > a.cfg.Retries {
			break
		}

		delay := a.backoff(ev.Attempts)
		a.cfg.Stats.AddRetries(1)
		slog.Debug("retrying action",
			"action", act.Kind.String(),
			"path", act.RelPath,
			"attempt", fmt.Sprintf("%d/%d", ev.Attempts, a.cfg.Retries),
			"after", delay,
			"error", err,
		)
		if waitErr := a.sleep(ctx, delay); waitErr != nil {
			err = fmt.Errorf("%w (retry abandoned: %w)", err, waitErr)
			break
		}
	}

	switch {
	case err == nil:
		ev.Type = event.ActionApplied
	case errors.Is(err, ErrSourceVanished):
		ev.Type = event.ActionSkipped
		ev.Reason = "source vanished before copy"
	default:
		ev.Type = event.ActionFailed
		ev.Error = fmt.Errorf("%s %s: %w", act.Kind, act.RelPath, err)
	}
	return a.finish(ev, act)
}

func (a *Applier) finish(ev event.Event, act Action) event.Event {
	s := a.cfg.Stats
	s.AddActions(1)
	switch ev.Type {
	case event.ActionApplied:
		switch act.Kind {
		case CreateDir:
			s.AddDirsCreated(1)
		case CopyFile:
			s.AddFilesCopied(1)
		case UpdateFile:
			s.AddFilesUpdated(1)
		case DeleteFile:
			s.AddFilesDeleted(1)
		case DeleteDir:
			s.AddDirsDeleted(1)
		}
	case event.ActionFailed:
		s.AddFailed(1)
	case event.ActionSkipped:
		s.AddSkipped(1)
	}

	ev.Timestamp = time.Now()
	if a.cfg.Events != nil {
		a.cfg.Events <- ev
	}
	return ev
}

func (a *Applier) backoff(attempt int) time.Duration {
	d := a.cfg.RetryDelay
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

func (a *Applier) execute(ctx context.Context, act Action) error {
	switch act.Kind {
	case CreateDir:
		return createDir(act)
	case CopyFile, UpdateFile:
		return a.copyFile(ctx, act)
	case DeleteFile:
		return deleteFile(act)
	case DeleteDir:
		return deleteDir(act)
	default:
		return fmt.Errorf("unknown action kind %d", act.Kind)
	}
}

func createDir(act Action) error {
	perm := withOwnerAccess(act.Entry.Mode, 0o700)
	if err := os.MkdirAll(act.DstPath, perm); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return nil
}

func deleteFile(act Action) error {
	if err := os.Remove(act.DstPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func deleteDir(act Action) error {
	err := os.Remove(act.DstPath)
	switch {
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return nil
	case errors.Is(err, syscall.ENOTEMPTY), errors.Is(err, syscall.EEXIST):
		return ErrNotEmpty
	default:
		return fmt.Errorf("rmdir: %w", err)
	}
}

// copyFile writes the source into a temp file beside the destination,
// stamps the source mtime on it and renames it over the destination. Once the
// temp file is open the copy runs to completion even if ctx is cancelled, so
// cancellation can never strand a half-written file.
func (a *Applier) copyFile(ctx context.Context, act Action) error {
	in, err := os.Open(act.SrcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrSourceVanished
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmpPath := tempPathFor(act.DstPath)
	inflight.add(tmpPath)
	defer func() {
		inflight.remove(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp %s: %w", filepath.Base(tmpPath), err)
	}

	var n int64
	if a.cfg.Limiter != nil {
		r := newRateLimitedReader(context.WithoutCancel(ctx), in, a.cfg.Limiter)
		n, err = io.CopyBuffer(out, r, a.buf)
	} else {
		var res platform.CopyResult
		res, err = platform.CopyFile(out, in)
		n = res.BytesWritten
		slog.Debug("copied", "path", act.RelPath, "bytes", n, "method", res.Method.String())
	}
	if err != nil {
		out.Close()
		return fmt.Errorf("copy data: %w", err)
	}

	if err := out.Chmod(withOwnerAccess(act.Entry.Mode, 0o600)); err != nil {
		out.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}

	if err := setModTime(out, act.Entry.ModTime); err != nil {
		out.Close()
		return fmt.Errorf("set mtime: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmpPath, act.DstPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}

	a.cfg.Stats.AddBytesCopied(n)
	return nil
}

// withOwnerAccess keeps the permission bits of mode but always grants the
// owner the bits in need, so later cycles can still update or remove the
// replica copy of a read-only source entry.
func withOwnerAccess(mode fs.FileMode, need fs.FileMode) fs.FileMode {
	return mode.Perm() | need
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
