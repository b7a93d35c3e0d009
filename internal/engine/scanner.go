package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bamsammich/mirror/internal/event"
	"github.com/bamsammich/mirror/internal/filter"
)

// Tree labels used in scan warnings.
const (
	TreeSource  = "source"
	TreeReplica = "replica"
)

// ScannerConfig controls scanner behavior.
type ScannerConfig struct {
	Events        chan<- event.Event
	Excludes      *filter.Excludes
	Cache         DigestCache
	Root          string
	Tree          string
	Compare       CompareMode
	ModTimeWindow time.Duration
	Cycle         uint64

	// KeepIrregular records symlinks and other non-regular files as
	// KindOther entries instead of skipping them. Set for the replica, where
	// such entries must be removed before anything is written through them.
	KeepIrregular bool
}

// Scanner walks one directory tree and builds a Snapshot. Directories are
// visited from an explicit stack rather than by recursion. Symlinks and other
// non-regular files are never followed; they are skipped with a warning, or
// recorded as KindOther when KeepIrregular is set.
type Scanner struct {
	cfg     ScannerConfig
	fp      fingerprinter
	visited map[devIno]string
	snap    *Snapshot
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Compare == "" {
		cfg.Compare = CompareMeta
	}
	return &Scanner{
		cfg: cfg,
		fp: fingerprinter{
			cache:  cfg.Cache,
			mode:   cfg.Compare,
			tree:   cfg.Root,
			window: cfg.ModTimeWindow,
		},
	}
}

type pendingDir struct {
	info    fs.FileInfo
	relPath string
}

// Scan walks the tree and returns its snapshot. Problems with individual
// entries become ScanWarning events; only a missing or unreadable root (or
// cancellation) fails the scan.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, error) {
	s.snap = newSnapshot(s.cfg.Root)
	s.visited = make(map[devIno]string)

	rootInfo, err := os.Stat(s.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("stat %s root %s: %w", s.cfg.Tree, s.cfg.Root, err)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf("%s root %s is not a directory", s.cfg.Tree, s.cfg.Root)
	}
	if id, ok := dirIdentity(rootInfo); ok {
		s.visited[id] = ""
	}

	stack := []pendingDir{{relPath: "", info: rootInfo}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := s.scanDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		stack = append(stack, children...)
	}

	return s.snap, nil
}

// scanDir lists one directory, records it and its files, and returns the
// subdirectories still to visit.
func (s *Scanner) scanDir(ctx context.Context, dir pendingDir) ([]pendingDir, error) {
	absDir := s.absPath(dir.relPath)

	entries, err := os.ReadDir(absDir)
	if err != nil {
		if dir.relPath == "" {
			return nil, fmt.Errorf("read %s root %s: %w", s.cfg.Tree, s.cfg.Root, err)
		}
		s.warnEntry(dir.relPath, fmt.Errorf("readdir: %w", err))
		return nil, nil
	}

	if dir.relPath != "" {
		s.snap.Entries[dir.relPath] = PathEntry{
			RelPath: dir.relPath,
			Kind:    KindDir,
			Mode:    dir.info.Mode(),
			ModTime: dir.info.ModTime(),
		}
	}

	var subdirs []pendingDir
	for _, d := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		relPath := joinRel(dir.relPath, d.Name())
		if s.cfg.Excludes.Excluded(relPath, d.IsDir()) {
			continue
		}

		info, err := d.Info()
		if err != nil {
			s.warnEntry(relPath, fmt.Errorf("lstat: %w", err))
			continue
		}

		mode := info.Mode()
		switch {
		case mode.IsDir():
			if id, ok := dirIdentity(info); ok {
				if first, seen := s.visited[id]; seen {
					s.warn(relPath, fmt.Errorf("directory loop: same directory as %q", first))
					s.snap.Skipped[relPath] = struct{}{}
					continue
				}
				s.visited[id] = relPath
			}
			subdirs = append(subdirs, pendingDir{relPath: relPath, info: info})

		case s.cfg.KeepIrregular && !mode.IsRegular():
			s.snap.Entries[relPath] = PathEntry{
				RelPath: relPath,
				Kind:    KindOther,
				Mode:    mode,
				ModTime: info.ModTime(),
			}

		case mode&fs.ModeSymlink != 0:
			s.warn(relPath, errors.New("symbolic link skipped"))

		case mode.IsRegular():
			fp, err := s.fp.fingerprint(s.absPath(relPath), relPath, info)
			if err != nil {
				s.warnEntry(relPath, fmt.Errorf("fingerprint: %w", err))
				continue
			}
			s.snap.Entries[relPath] = PathEntry{
				RelPath:     relPath,
				Kind:        KindFile,
				Size:        info.Size(),
				Mode:        mode,
				ModTime:     info.ModTime(),
				Fingerprint: fp,
			}

		default:
			s.warn(relPath, fmt.Errorf("unsupported file type %s skipped", mode.Type()))
		}
	}

	return subdirs, nil
}

// warnEntry reports an entry that could not be captured. Entries that
// vanished mid-walk are simply gone; anything else is recorded as skipped so
// the diff leaves the other tree's copy alone.
func (s *Scanner) warnEntry(relPath string, err error) {
	if !errors.Is(err, fs.ErrNotExist) {
		s.snap.Skipped[relPath] = struct{}{}
	}
	s.warn(relPath, err)
}

func (s *Scanner) warn(relPath string, err error) {
	s.snap.Warnings++
	if s.cfg.Events == nil {
		return
	}
	s.cfg.Events <- event.Event{
		Type:      event.ScanWarning,
		Timestamp: time.Now(),
		Tree:      s.cfg.Tree,
		Path:      relPath,
		Cycle:     s.cfg.Cycle,
		Error:     err,
	}
}

func (s *Scanner) absPath(relPath string) string {
	if relPath == "" {
		return s.cfg.Root
	}
	return filepath.Join(s.cfg.Root, filepath.FromSlash(relPath))
}
