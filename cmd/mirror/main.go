package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/mirror/internal/config"
	"github.com/bamsammich/mirror/internal/engine"
	"github.com/bamsammich/mirror/internal/event"
	"github.com/bamsammich/mirror/internal/filter"
	"github.com/bamsammich/mirror/internal/ui"
)

var version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// excludeFlag is a pflag.Value that validates each --exclude pattern as it
// is given and appends it to a shared filter.Excludes.
type excludeFlag struct {
	excludes *filter.Excludes
}

var _ pflag.Value = (*excludeFlag)(nil)

func (*excludeFlag) String() string { return "" }
func (*excludeFlag) Type() string   { return "pattern" }

func (f *excludeFlag) Set(val string) error {
	return f.excludes.Add(val)
}

// flags holds the raw command-line values before they are resolved into
// engine.Options.
type flags struct {
	compare     string
	retryDelay  time.Duration
	mtimeWindow time.Duration
	bwLimit     string
	hashCache   string
	excludeFrom string
	configFile  string
	retries     int
	verbose     bool
	quiet       bool
	dryRun      bool
	once        bool
	showVersion bool
}

func run(args []string, stderr io.Writer) int {
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		// Besides *engine.ConfigError this covers whatever cobra rejects
		// (unknown flag, wrong argument count).
		return exitConfig
	}
	return exitOK
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: CLI entry point resolves every flag
func newRootCmd(stderr io.Writer) *cobra.Command {
	var f flags
	excludes, _ := filter.New() //nolint:errcheck // no patterns, cannot fail

	rootCmd := &cobra.Command{
		Use:   "mirror [flags] <source> <replica> <interval-seconds> <log-file>",
		Short: "Keep a replica directory identical to a source directory",
		Long: `mirror periodically makes <replica> an exact copy of <source>.

Every <interval-seconds> it scans both trees, works out what differs and
copies, updates or deletes entries in the replica until they match. Files are
written to a temp file and renamed into place, so the replica never holds a
half-written file. Every action is logged to stderr and, as JSON, to
<log-file>.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				return nil
			}
			return cobra.ExactArgs(4)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "mirror %s\n", version)
				return nil
			}

			cfg, err := loadConfig(f.configFile)
			if err != nil {
				return &engine.ConfigError{Field: "config file", Err: err}
			}
			if err := applyConfigDefaults(cmd, cfg.Defaults, &f, excludes); err != nil {
				return err
			}

			if f.excludeFrom != "" {
				if err := excludes.LoadFile(f.excludeFrom); err != nil {
					return &engine.ConfigError{Field: "exclude file", Err: err}
				}
			}

			opts, err := buildOptions(args, &f, excludes)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(args[3]), 0o755); err != nil {
				return &engine.ConfigError{Field: "log file", Err: err}
			}
			lf, err := os.OpenFile(args[3], os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				return &engine.ConfigError{Field: "log file", Err: err}
			}
			defer lf.Close()

			logger := newLogger(stderr, lf, f.verbose, f.quiet)
			slog.SetDefault(logger)

			opts, err = opts.Resolve()
			if err != nil {
				return err
			}

			return runMirror(logger, opts, &f, stderr)
		},
	}

	fl := rootCmd.Flags()
	fl.BoolVar(&f.showVersion, "version", false, "print version and exit")
	fl.StringVar(&f.compare, "compare", string(engine.CompareMeta),
		"how files are compared: meta (size+mtime), blake3 or xxhash (size+content)")
	fl.DurationVar(&f.mtimeWindow, "mtime-window", 0,
		"treat mtimes within this window as equal (e.g. 2s for FAT replicas)")
	fl.IntVar(&f.retries, "retries", engine.DefaultRetries, "retries per action for transient errors")
	fl.DurationVar(&f.retryDelay, "retry-delay", engine.DefaultRetryDelay, "initial delay between retries (doubles each retry)")
	fl.Var(&excludeFlag{excludes: excludes}, "exclude", "exclude paths matching PATTERN from both trees (repeatable)")
	fl.StringVar(&f.excludeFrom, "exclude-from", "", "read exclude patterns from FILE")
	fl.StringVar(&f.bwLimit, "bwlimit", "", "copy bandwidth limit (e.g. 100M, 1G)")
	fl.StringVar(&f.hashCache, "hash-cache", "", "persist content digests in this SQLite file")
	fl.BoolVar(&f.dryRun, "dry-run", false, "log what would change without touching the replica")
	fl.BoolVar(&f.once, "once", false, "run a single cycle and exit")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "suppress all output except warnings and errors")
	fl.StringVar(&f.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/mirror/config.toml)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// buildOptions turns positional arguments and flags into engine options.
// Paths are not checked here; Options.Resolve does that.
func buildOptions(args []string, f *flags, excludes *filter.Excludes) (engine.Options, error) {
	opts := engine.DefaultOptions()
	opts.Source = args[0]
	opts.Replica = args[1]

	secs, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return opts, &engine.ConfigError{Field: "interval", Err: fmt.Errorf("%q is not a number of seconds", args[2])}
	}
	opts.Interval = time.Duration(secs * float64(time.Second))

	mode, err := engine.ParseCompareMode(f.compare)
	if err != nil {
		return opts, &engine.ConfigError{Field: "compare mode", Err: err}
	}
	opts.Compare = mode

	if f.bwLimit != "" {
		opts.BWLimit, err = filter.ParseSize(f.bwLimit)
		if err != nil {
			return opts, &engine.ConfigError{Field: "bandwidth limit", Err: err}
		}
	}

	opts.Retries = f.retries
	opts.RetryDelay = f.retryDelay
	opts.ModTimeWindow = f.mtimeWindow
	opts.HashCachePath = f.hashCache
	opts.DryRun = f.dryRun
	opts.Excludes = excludes.Patterns()
	return opts, nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	f *flags,
	excludes *filter.Excludes,
) error {
	changed := cmd.Flags().Changed
	if !changed("compare") && defaults.Compare != nil {
		f.compare = *defaults.Compare
	}
	if !changed("retries") && defaults.Retries != nil {
		f.retries = *defaults.Retries
	}
	if !changed("bwlimit") && defaults.BWLimit != nil {
		f.bwLimit = *defaults.BWLimit
	}
	if !changed("hash-cache") && defaults.HashCache != nil {
		f.hashCache = *defaults.HashCache
	}
	if !changed("retry-delay") && defaults.RetryDelay != nil {
		d, err := time.ParseDuration(*defaults.RetryDelay)
		if err != nil {
			return &engine.ConfigError{Field: "config retry_delay", Err: err}
		}
		f.retryDelay = d
	}
	if !changed("mtime-window") && defaults.MtimeWindow != nil {
		d, err := time.ParseDuration(*defaults.MtimeWindow)
		if err != nil {
			return &engine.ConfigError{Field: "config mtime_window", Err: err}
		}
		f.mtimeWindow = d
	}
	if !changed("exclude") {
		for _, p := range defaults.Exclude {
			if err := excludes.Add(p); err != nil {
				return &engine.ConfigError{Field: "config exclude", Err: err}
			}
		}
	}
	return nil
}

// newLogger writes human-readable records to the console and every record,
// debug included, as JSON to the log file.
func newLogger(console, logFile io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	textHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	jsonHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(ui.NewMultiHandler(textHandler, jsonHandler))
}

// runMirror runs cycles until a signal arrives (or once, with --once), with
// the reporter draining events in the background.
func runMirror(logger *slog.Logger, opts engine.Options, f *flags, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan event.Event, 256)
	eng, err := engine.New(opts, events)
	if err != nil {
		return err
	}

	reporter := ui.NewReporter(logger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(events)
	}()

	logger.Info("mirror starting",
		"version", version,
		"source", opts.Source,
		"replica", opts.Replica,
		"interval", opts.Interval,
		"compare", string(opts.Compare),
		"excludes", len(opts.Excludes),
		"dry_run", opts.DryRun,
	)

	sched := engine.NewScheduler(eng, opts.Interval, events)
	var result engine.CycleResult
	if f.once {
		result = sched.RunOnce(ctx)
	} else {
		_ = sched.Run(ctx) //nolint:errcheck // Run only returns on cancellation
	}
	stop()

	close(events)
	wg.Wait()

	if n := engine.CleanupTempFiles(); n > 0 {
		logger.Warn("removed leftover temp files", "count", n)
	}
	if err := eng.Close(); err != nil {
		logger.Warn("close engine", "error", err)
	}

	if !f.quiet {
		if summary := reporter.Summary(); summary != "" {
			fmt.Fprintln(stderr, summary)
		}
	}
	logger.Info("mirror stopped", "cycles", sched.Cycles())

	if f.once && result.Err != nil && !result.Interrupted {
		return &exitError{code: exitFailed}
	}
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
