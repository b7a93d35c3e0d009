package engine

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bamsammich/mirror/internal/event"
	"github.com/bamsammich/mirror/internal/filter"
	"github.com/bamsammich/mirror/internal/stats"
)

// Engine runs sync cycles for one source/replica pair.
type Engine struct {
	events   chan<- event.Event
	excludes *filter.Excludes
	cache    DigestCache
	limiter  *rate.Limiter
	opts     Options
}

// New creates an Engine from resolved options. Events, if non-nil, receives
// every scan warning and action outcome; the caller must keep draining it.
func New(opts Options, events chan<- event.Event) (*Engine, error) {
	excludes, err := filter.New(opts.Excludes...)
	if err != nil {
		return nil, &ConfigError{Field: "exclude", Err: err}
	}

	e := &Engine{
		events:   events,
		excludes: excludes,
		limiter:  NewBWLimiter(opts.BWLimit),
		opts:     opts,
	}

	if opts.Compare.hashesContent() {
		if opts.HashCachePath != "" {
			e.cache, err = OpenSQLiteCache(opts.HashCachePath)
		} else {
			e.cache, err = NewMemoryCache(opts.CacheEntries)
		}
		if err != nil {
			return nil, &ConfigError{Field: "hash cache", Err: err}
		}
	}

	return e, nil
}

// Options returns the options the engine was created with.
func (e *Engine) Options() Options { return e.opts }

// Close releases the digest cache and removes any temp files left by a copy
// that was cut short.
func (e *Engine) Close() error {
	CleanupTempFiles()
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

// CycleResult is the outcome of one sync cycle.
type CycleResult struct {
	Err         error
	Actions     []Action
	Stats       stats.Snapshot
	Cycle       uint64
	Interrupted bool
}

// RunCycle performs one Scan→Diff→Apply pass. track, if non-nil, is called on
// every state transition. Action failures do not fail the cycle; they are
// reported as events and re-detected next cycle. Cancellation is honoured
// between actions, never in the middle of one.
func (e *Engine) RunCycle(ctx context.Context, n uint64, track func(State)) CycleResult {
	if track == nil {
		track = func(State) {}
	}
	collector := stats.NewCollector()
	result := CycleResult{Cycle: n}

	track(Scanning)
	// The replica root may have been removed since the last cycle.
	if !e.opts.DryRun {
		if err := os.MkdirAll(e.opts.Replica, 0o755); err != nil {
			result.Err = fmt.Errorf("ensure replica root: %w", err)
			result.Stats = collector.Snapshot()
			return result
		}
	}

	src, dst, err := e.scanBoth(ctx, n)
	if err != nil {
		result.Err = err
		result.Interrupted = ctx.Err() != nil
		result.Stats = collector.Snapshot()
		return result
	}
	collector.SetScanned(int64(src.Len()), int64(dst.Len()))
	collector.AddScanWarnings(int64(src.Warnings + dst.Warnings))

	track(Diffing)
	result.Actions = Diff(src, dst)

	track(Applying)
	applier := NewApplier(ApplierConfig{
		Events:     e.events,
		Stats:      collector,
		Limiter:    e.limiter,
		Retries:    e.opts.Retries,
		RetryDelay: e.opts.RetryDelay,
		Cycle:      n,
		DryRun:     e.opts.DryRun,
	})
	for _, act := range result.Actions {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}
		applier.Apply(ctx, act)
	}

	if e.cache != nil {
		if err := e.cache.Flush(); err != nil {
			result.Err = fmt.Errorf("flush digest cache: %w", err)
		}
	}

	result.Stats = collector.Snapshot()
	return result
}

// scanBoth snapshots source and replica concurrently.
func (e *Engine) scanBoth(ctx context.Context, n uint64) (*Snapshot, *Snapshot, error) {
	var src, dst *Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		src, err = e.newScanner(e.opts.Source, TreeSource, n).Scan(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		dst, err = e.newScanner(e.opts.Replica, TreeReplica, n).Scan(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("scan: %w", err)
	}
	return src, dst, nil
}

func (e *Engine) newScanner(root, tree string, n uint64) *Scanner {
	return NewScanner(ScannerConfig{
		Events:        e.events,
		Excludes:      e.excludes,
		Cache:         e.cache,
		Root:          root,
		Tree:          tree,
		Compare:       e.opts.Compare,
		ModTimeWindow: e.opts.ModTimeWindow,
		Cycle:         n,
		KeepIrregular: tree == TreeReplica,
	})
}
