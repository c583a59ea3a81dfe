package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns skip editor, OS and VCS clutter that should never
// end up in a vault. Config and .avignore patterns are applied after them
// and may re-include with '!'.
var defaultIgnorePatterns = []string{
	IgnoreFileName,
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"~$*", // Office lock files
	".git/",
}

// rule is one parsed ignore line.
type rule struct {
	glob     string
	negate   bool // "!pattern" re-includes a previously ignored path
	dirOnly  bool // "pattern/" matches directories only
	anchored bool // pattern contains '/', matched against the whole relative path
}

// IgnoreMatcher decides which paths a directory upload skips. The syntax is
// a small subset of .gitignore: '#' comments, '!' negation, a trailing '/'
// for directories, and patterns containing '/' anchored at the upload root.
// The last matching rule wins.
type IgnoreMatcher struct {
	rules []rule
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines and comments are skipped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var r rule
		if strings.HasPrefix(line, "!") {
			r.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.Contains(line, "/") {
			r.anchored = true
			line = strings.TrimPrefix(line, "/")
		}
		if line == "" {
			continue
		}
		r.glob = line
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether relativePath, relative to the upload root, is ignored.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if relativePath == "" || relativePath == "." {
		return false
	}
	rel := filepath.ToSlash(relativePath)
	base := path.Base(rel)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := base
		if r.anchored {
			subject = rel
		}
		ok, err := path.Match(r.glob, subject)
		if err != nil || !ok {
			continue
		}
		ignored = !r.negate
	}
	return ignored
}

// ParseIgnoreFile reads the raw lines of an .avignore file. A missing file
// yields no lines and no error.
func ParseIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
