package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mirror/internal/event"
)

// baseTime is a whole-second timestamp used for deterministic mtimes.
var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// writeFile creates root/rel with data and the given mtime, creating parent
// directories as needed.
func writeFile(t *testing.T, root, rel, data string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func mkdir(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(path, 0o755))
	return path
}

// createTestTree populates root with a standard test tree:
//
//	root.txt
//	sub/mid.txt
//	sub/deep/leaf.txt
//	empty/
func createTestTree(t *testing.T, root string) {
	t.Helper()
	writeFile(t, root, "root.txt", "root file content", baseTime)
	writeFile(t, root, "sub/mid.txt", "middle file content", baseTime)
	writeFile(t, root, "sub/deep/leaf.txt", "leaf file content", baseTime)
	mkdir(t, root, "empty")
}

// collectEvents creates a buffered event channel that records all events.
// The getter closes the channel and waits for the drain goroutine, so it is
// safe to read the slice. If the getter is never called, t.Cleanup closes
// the channel on test exit.
func collectEvents(t *testing.T) (chan<- event.Event, func() []event.Event) {
	t.Helper()
	ch := make(chan event.Event, 4096)
	var collected []event.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			collected = append(collected, ev)
		}
	}()
	var once sync.Once
	drain := func() {
		once.Do(func() { close(ch) })
		<-done
	}
	t.Cleanup(drain)
	return ch, func() []event.Event {
		drain()
		return collected
	}
}

func eventsOfType(events []event.Event, typ event.Type) []event.Event {
	var out []event.Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// scanTree snapshots root with the given config tweaks.
func scanTree(t *testing.T, root string, mutate func(*ScannerConfig)) *Snapshot {
	t.Helper()
	cfg := ScannerConfig{Root: root, Tree: TreeSource}
	if mutate != nil {
		mutate(&cfg)
	}
	snap, err := NewScanner(cfg).Scan(context.Background())
	require.NoError(t, err)
	return snap
}

// treeContents returns every path under root (slash-separated, directories
// suffixed with "/") mapped to file content, skipping nothing.
func treeContents(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			out[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// requireMirrored asserts that dst holds exactly the tree in src, with equal
// file mtimes.
func requireMirrored(t *testing.T, src, dst string) {
	t.Helper()
	require.Equal(t, treeContents(t, src), treeContents(t, dst))

	for rel := range treeContents(t, src) {
		if rel[len(rel)-1] == '/' {
			continue
		}
		si, err := os.Stat(filepath.Join(src, rel))
		require.NoError(t, err)
		di, err := os.Stat(filepath.Join(dst, rel))
		require.NoError(t, err)
		require.True(t, si.ModTime().Equal(di.ModTime()), "mtime mismatch for %s: %s vs %s", rel, si.ModTime(), di.ModTime())
	}
}

func actionStrings(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// newTestEngine builds an Engine over src and dst with fast retries.
func newTestEngine(t *testing.T, src, dst string, mutate func(*Options)) (*Engine, func() []event.Event) {
	t.Helper()
	opts := DefaultOptions()
	opts.Source = src
	opts.Replica = dst
	opts.Interval = time.Second
	opts.RetryDelay = time.Millisecond
	if mutate != nil {
		mutate(&opts)
	}
	resolved, err := opts.Resolve()
	require.NoError(t, err)

	events, get := collectEvents(t)
	eng, err := New(resolved, events)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, get
}
