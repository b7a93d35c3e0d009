package ui

import (
	"context"
	"log/slog"

	"github.com/bamsammich/mirror/internal/event"
)

// Reporter turns engine events into log records: one "mirror.event" record
// per scan warning or action outcome and one "mirror.cycle" record per cycle.
type Reporter struct {
	logger *slog.Logger
	last   event.Event
}

// NewReporter returns a Reporter that writes to logger, or to the default
// logger when logger is nil.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger}
}

// Run consumes events until the channel closes. Blocks until done.
func (r *Reporter) Run(events <-chan event.Event) {
	for ev := range events {
		r.Handle(ev)
	}
}

// Handle writes the record for a single event.
func (r *Reporter) Handle(ev event.Event) {
	ctx := context.Background()
	switch ev.Type {
	case event.CycleStarted:
		r.logger.LogAttrs(ctx, slog.LevelDebug, "mirror.cycle",
			slog.Uint64("cycle", ev.Cycle),
			slog.String("state", "started"),
		)

	case event.CycleCompleted, event.CycleFailed:
		r.last = ev
		s := ev.Summary
		attrs := []slog.Attr{
			slog.Uint64("cycle", ev.Cycle),
			slog.String("state", cycleState(ev)),
			slog.Int64("created", s.Created()),
			slog.Int64("updated", s.FilesUpdated),
			slog.Int64("deleted", s.Deleted()),
			slog.Int64("failed", s.Failed),
			slog.Int64("skipped", s.Skipped),
			slog.Int64("retries", s.Retries),
			slog.Int64("warnings", s.ScanWarnings),
			slog.Int64("bytes", s.BytesCopied),
			slog.Int64("source_entries", s.SourceEntries),
			slog.Int64("replica_entries", s.ReplicaEntries),
			slog.Duration("elapsed", s.Elapsed),
		}
		level := slog.LevelInfo
		if ev.Type == event.CycleFailed {
			level = slog.LevelError
			attrs = append(attrs, slog.Any("error", ev.Error))
		}
		r.logger.LogAttrs(ctx, level, "mirror.cycle", attrs...)

	case event.ScanWarning:
		r.logger.LogAttrs(ctx, slog.LevelWarn, "mirror.event",
			slog.Uint64("cycle", ev.Cycle),
			slog.String("type", ev.Type.String()),
			slog.String("tree", ev.Tree),
			slog.String("path", ev.Path),
			slog.Any("error", ev.Error),
		)

	case event.ActionApplied, event.ActionFailed, event.ActionSkipped:
		attrs := []slog.Attr{
			slog.Uint64("cycle", ev.Cycle),
			slog.String("action", ev.Action),
			slog.String("path", ev.Path),
			slog.String("outcome", ev.Type.Outcome()),
			slog.Int("attempts", ev.Attempts),
		}
		level := slog.LevelInfo
		switch ev.Type {
		case event.ActionFailed:
			level = slog.LevelError
			attrs = append(attrs, slog.Any("error", ev.Error))
		case event.ActionSkipped:
			attrs = append(attrs, slog.String("reason", ev.Reason))
		}
		r.logger.LogAttrs(ctx, level, "mirror.event", attrs...)
	}
}

// Summary returns the console summary of the last finished cycle, or "" if
// no cycle has finished.
func (r *Reporter) Summary() string {
	if r.last.Type == 0 {
		return ""
	}
	return CycleSummary(r.last.Cycle, r.last.Summary)
}

func cycleState(ev event.Event) string {
	switch {
	case ev.Type == event.CycleFailed:
		return "failed"
	case ev.Reason != "":
		return ev.Reason
	default:
		return "completed"
	}
}
