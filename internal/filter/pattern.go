package filter

import (
	"fmt"
	"path"
	"strings"
)

// pattern is a compiled exclude glob.
//
//   - "*.log"       matches any entry whose base name matches
//   - "build/"      matches directories only
//   - "/cache"      anchored to the tree root
//   - "docs/*.tmp"  contains a slash, so anchored as well
//   - "**"          as a whole segment matches zero or more segments
type pattern struct {
	original string
	segments []string
	anchored bool
	dirOnly  bool
}

func compile(p string) (*pattern, error) {
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("empty exclude pattern")
	}
	cp := &pattern{original: p}

	if strings.HasSuffix(p, "/") {
		cp.dirOnly = true
		p = strings.TrimRight(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		cp.anchored = true
		p = strings.TrimLeft(p, "/")
	} else if strings.Contains(p, "/") {
		cp.anchored = true
	}
	if p == "" {
		return nil, fmt.Errorf("exclude pattern %q matches nothing", cp.original)
	}

	cp.segments = strings.Split(p, "/")
	for _, seg := range cp.segments {
		if seg == "**" {
			continue
		}
		// Surface ErrBadPattern now rather than on every match.
		if _, err := path.Match(seg, ""); err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", cp.original, err)
		}
	}
	return cp, nil
}

func (p *pattern) match(relPath string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	parts := strings.Split(relPath, "/")
	if !p.anchored {
		ok, _ := path.Match(p.segments[0], parts[len(parts)-1])
		return ok
	}
	return matchSegments(p.segments, parts)
}

func matchSegments(pat, parts []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], parts[0]); !ok {
			return false
		}
		pat, parts = pat[1:], parts[1:]
	}
	return len(parts) == 0
}
