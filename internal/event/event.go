package event

import (
	"time"

	"github.com/bamsammich/mirror/internal/stats"
)

// Type identifies the kind of event.
type Type int

const (
	CycleStarted Type = iota + 1
	CycleCompleted
	CycleFailed
	ScanWarning
	ActionApplied
	ActionFailed
	ActionSkipped
)

var typeNames = [...]string{
	CycleStarted:   "CycleStarted",
	CycleCompleted: "CycleCompleted",
	CycleFailed:    "CycleFailed",
	ScanWarning:    "ScanWarning",
	ActionApplied:  "ActionApplied",
	ActionFailed:   "ActionFailed",
	ActionSkipped:  "ActionSkipped",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Outcome returns the action outcome for ActionApplied, ActionFailed and
// ActionSkipped, and "" for every other type.
func (t Type) Outcome() string {
	switch t {
	case ActionApplied:
		return "applied"
	case ActionFailed:
		return "failed"
	case ActionSkipped:
		return "skipped"
	default:
		return ""
	}
}

// Event is a single outcome reported by the sync engine. Events are values;
// consumers must not modify them.
type Event struct {
	Timestamp time.Time
	Error     error
	Path      string // relative to the tree root
	Action    string // action kind, e.g. "copy-file"
	Tree      string // "source" or "replica" for ScanWarning
	Reason    string // why an action was skipped
	Summary   stats.Snapshot
	Cycle     uint64
	Attempts  int
	Type      Type
}
