package filter

// Excludes is an ordered set of exclude patterns. A path that matches any
// pattern is left out of both tree snapshots: it is neither copied to nor
// deleted from the replica.
type Excludes struct {
	patterns []*pattern
}

// New compiles the given patterns into an Excludes set.
func New(patterns ...string) (*Excludes, error) {
	e := &Excludes{}
	for _, p := range patterns {
		if err := e.Add(p); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Add compiles and appends one pattern.
func (e *Excludes) Add(p string) error {
	cp, err := compile(p)
	if err != nil {
		return err
	}
	e.patterns = append(e.patterns, cp)
	return nil
}

// Len reports the number of patterns in the set.
func (e *Excludes) Len() int {
	if e == nil {
		return 0
	}
	return len(e.patterns)
}

// Excluded reports whether relPath (slash-separated, relative to the tree
// root) is excluded. A nil set excludes nothing.
func (e *Excludes) Excluded(relPath string, isDir bool) bool {
	if e == nil {
		return false
	}
	for _, p := range e.patterns {
		if p.match(relPath, isDir) {
			return true
		}
	}
	return false
}

// Patterns returns the original pattern strings in insertion order.
func (e *Excludes) Patterns() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.patterns))
	for i, p := range e.patterns {
		out[i] = p.original
	}
	return out
}
