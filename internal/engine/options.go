package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options is the resolved configuration the engine runs with.
type Options struct {
	Source        string
	Replica       string
	Compare       CompareMode
	HashCachePath string // SQLite digest cache; empty keeps digests in memory
	Excludes      []string
	Interval      time.Duration
	ModTimeWindow time.Duration
	RetryDelay    time.Duration
	BWLimit       int64 // bytes per second; 0 disables the limit
	Retries       int
	CacheEntries  int
	DryRun        bool
}

// DefaultOptions returns Options with every tunable at its default.
func DefaultOptions() Options {
	return Options{
		Compare:      CompareMeta,
		Retries:      DefaultRetries,
		RetryDelay:   DefaultRetryDelay,
		CacheEntries: DefaultCacheEntries,
	}
}

// Resolve validates o and returns a copy with absolute, cleaned paths. The
// replica directory is created if it does not exist yet. Every error it
// returns is a *ConfigError.
func (o Options) Resolve() (Options, error) {
	if o.Interval <= 0 {
		return o, &ConfigError{Field: "interval", Err: fmt.Errorf("must be positive, got %s", o.Interval)}
	}
	if o.Retries < 0 {
		return o, &ConfigError{Field: "retries", Err: fmt.Errorf("must not be negative, got %d", o.Retries)}
	}
	if o.ModTimeWindow < 0 {
		return o, &ConfigError{Field: "mtime window", Err: fmt.Errorf("must not be negative, got %s", o.ModTimeWindow)}
	}
	if o.BWLimit < 0 {
		return o, &ConfigError{Field: "bandwidth limit", Err: fmt.Errorf("must not be negative, got %d", o.BWLimit)}
	}
	mode, err := ParseCompareMode(string(o.Compare))
	if err != nil {
		return o, &ConfigError{Field: "compare mode", Err: err}
	}
	o.Compare = mode
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}

	if o.Source == "" {
		return o, &ConfigError{Field: "source", Err: errors.New("path is empty")}
	}
	if o.Replica == "" {
		return o, &ConfigError{Field: "replica", Err: errors.New("path is empty")}
	}
	if o.Source, err = filepath.Abs(o.Source); err != nil {
		return o, &ConfigError{Field: "source", Err: err}
	}
	if o.Replica, err = filepath.Abs(o.Replica); err != nil {
		return o, &ConfigError{Field: "replica", Err: err}
	}

	info, err := os.Stat(o.Source)
	if err != nil {
		return o, &ConfigError{Field: "source", Err: err}
	}
	if !info.IsDir() {
		return o, &ConfigError{Field: "source", Err: fmt.Errorf("%s is not a directory", o.Source)}
	}

	if err := checkDisjoint(o.Source, o.Replica); err != nil {
		return o, err
	}

	created := false
	switch info, err := os.Stat(o.Replica); {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(o.Replica, 0o755); err != nil {
			return o, &ConfigError{Field: "replica", Err: fmt.Errorf("create: %w", err)}
		}
		created = true
	case err != nil:
		return o, &ConfigError{Field: "replica", Err: err}
	case !info.IsDir():
		return o, &ConfigError{Field: "replica", Err: fmt.Errorf("%s is not a directory", o.Replica)}
	}

	// Symlinks can hide overlap that the lexical check above cannot see.
	realSrc, err := filepath.EvalSymlinks(o.Source)
	if err != nil {
		return o, &ConfigError{Field: "source", Err: err}
	}
	realRep, err := filepath.EvalSymlinks(o.Replica)
	if err != nil {
		return o, &ConfigError{Field: "replica", Err: err}
	}
	if err := checkDisjoint(realSrc, realRep); err != nil {
		if created {
			_ = os.Remove(o.Replica)
		}
		return o, err
	}

	return o, nil
}

// checkDisjoint rejects a replica that is the source, lives inside it (the
// mirror would copy itself forever) or contains it (the mirror would delete
// the source as replica-only content).
func checkDisjoint(src, rep string) error {
	switch {
	case src == rep:
		return &ConfigError{Field: "replica", Err: errors.New("replica and source are the same directory")}
	case within(src, rep):
		return &ConfigError{Field: "replica", Err: fmt.Errorf("replica %s is inside source %s", rep, src)}
	case within(rep, src):
		return &ConfigError{Field: "replica", Err: fmt.Errorf("source %s is inside replica %s", src, rep)}
	}
	return nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
