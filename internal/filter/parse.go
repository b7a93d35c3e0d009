package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile appends one pattern per line from path. Blank lines and lines
// starting with '#' are ignored.
func (e *Excludes) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open exclude file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := e.Add(line); err != nil {
			return fmt.Errorf("exclude file %s line %d: %w", path, lineNum, err)
		}
	}
	return sc.Err()
}
