package engine

import (
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Kind identifies the kind of filesystem entry held in a snapshot.
type Kind int

const (
	KindFile Kind = iota + 1
	KindDir
	// KindOther is a symlink, socket, device or FIFO found in the replica.
	// It never matches a source entry, so the diff always removes it.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// PathEntry describes one filesystem object inside a tree.
type PathEntry struct {
	ModTime     time.Time
	RelPath     string // slash-separated, relative to the tree root
	Fingerprint string // empty for directories
	Size        int64
	Mode        fs.FileMode
	Kind        Kind
}

// Snapshot maps relative paths to entries for one complete walk of a tree.
// Every non-root entry's parent directory is present as well.
type Snapshot struct {
	Entries map[string]PathEntry

	// Skipped holds paths that exist but could not be captured (permission
	// denied, unreadable content, directory cycles). Everything beneath a
	// skipped directory is unknown.
	Skipped map[string]struct{}

	Root     string
	Warnings int
}

func newSnapshot(root string) *Snapshot {
	return &Snapshot{
		Root:    root,
		Entries: make(map[string]PathEntry),
		Skipped: make(map[string]struct{}),
	}
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int { return len(s.Entries) }

// Get returns the entry for relPath.
func (s *Snapshot) Get(relPath string) (PathEntry, bool) {
	e, ok := s.Entries[relPath]
	return e, ok
}

// Paths returns all entry paths in ascending lexicographic order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Entries))
	for p := range s.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// covered reports whether relPath or one of its ancestors was skipped.
func (s *Snapshot) covered(relPath string) bool {
	if len(s.Skipped) == 0 {
		return false
	}
	for p := relPath; p != ""; p = parentPath(p) {
		if _, ok := s.Skipped[p]; ok {
			return true
		}
	}
	return false
}

// parentPath returns the slash-separated parent of relPath, or "" for a
// top-level entry.
func parentPath(relPath string) string {
	i := strings.LastIndexByte(relPath, '/')
	if i < 0 {
		return ""
	}
	return relPath[:i]
}

// depth returns the number of path components in relPath.
func depth(relPath string) int {
	return strings.Count(relPath, "/") + 1
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
