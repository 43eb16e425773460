package index

import (
	"bufio"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFileName holds per-directory ignore patterns, one glob per line.
const IgnoreFileName = ".imgviewignore"

// IgnoreList holds glob patterns matched against entry names.
// Entries matching any pattern are excluded from scans and watcher inserts.
type IgnoreList struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern string
	dirOnly bool // trailing / in source line
}

// NewIgnoreList parses patterns. Blank lines and # comments are skipped.
func NewIgnoreList(lines []string) *IgnoreList {
	il := &IgnoreList{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := ignorePattern{pattern: line}
		if strings.HasSuffix(line, "/") {
			p.pattern = strings.TrimSuffix(line, "/")
			p.dirOnly = true
		}
		il.patterns = append(il.patterns, p)
	}
	return il
}

// LoadIgnoreFile reads an ignore file. A missing or unreadable file yields
// an empty list.
func LoadIgnoreFile(fsys afero.Fs, path string) *IgnoreList {
	f, err := fsys.Open(path)
	if err != nil {
		return &IgnoreList{}
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return NewIgnoreList(lines)
}

// IsIgnored reports whether name matches any pattern.
// dirOnly patterns only match when isDir is true.
func (il *IgnoreList) IsIgnored(name string, isDir bool) bool {
	if il == nil {
		return false
	}
	for _, p := range il.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matched, _ := filepath.Match(p.pattern, name); matched {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (il *IgnoreList) Len() int {
	if il == nil {
		return 0
	}
	return len(il.patterns)
}
