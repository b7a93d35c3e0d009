package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TempSuffix marks files written by an in-progress copy. A leftover temp file
// from an interrupted run is an ordinary replica-only file to the next cycle
// and gets deleted by it.
const TempSuffix = ".mirror-tmp"

// tempPathFor returns a unique temp path in the same directory as dst, so the
// final rename never crosses a filesystem boundary.
func tempPathFor(dst string) string {
	name := fmt.Sprintf(".%s.%s%s", filepath.Base(dst), uuid.New().String()[:8], TempSuffix)
	return filepath.Join(filepath.Dir(dst), name)
}

// IsTempName reports whether a base name looks like one of our temp files.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, TempSuffix)
}

// tmpRegistry tracks temp files that are being written so shutdown can
// remove any that a cut-short copy left behind.
type tmpRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

var inflight = &tmpRegistry{}

func (r *tmpRegistry) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = make(map[string]struct{})
	}
	r.paths[path] = struct{}{}
}

func (r *tmpRegistry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

func (r *tmpRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// cleanup removes every registered temp file and returns how many it removed.
func (r *tmpRegistry) cleanup() int {
	r.mu.Lock()
	paths := make([]string, 0, len(r.paths))
	for p := range r.paths {
		paths = append(paths, p)
	}
	r.paths = nil
	r.mu.Unlock()

	removed := 0
	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			removed++
		}
	}
	return removed
}

// CleanupTempFiles removes temp files of copies that never reached their
// rename. Call it once the engine has stopped.
func CleanupTempFiles() int {
	return inflight.cleanup()
}
