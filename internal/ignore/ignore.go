// Package ignore matches paths against gitignore-style patterns. Watch mode
// uses it to skip directories and files that can never be build sources.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the project-specific ignore file read next to .gitignore.
const FileName = ".affectedignore"

// ErrBadPattern is returned for a pattern doublestar cannot parse.
var ErrBadPattern = errors.New("bad ignore pattern")

type pattern struct {
	glob    string
	negated bool
	dirOnly bool
}

// Matcher holds compiled patterns. Later patterns override earlier ones, so
// a negated pattern can re-include a path.
type Matcher struct {
	patterns []pattern
}

// New returns a Matcher for the given patterns.
func New(lines ...string) (*Matcher, error) {
	m := &Matcher{}
	for _, line := range lines {
		if err := m.Add(line); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add compiles one pattern line. Blank lines and # comments are skipped.
func (m *Matcher) Add(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	var p pattern
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}

	// Unanchored patterns without a slash match at any depth.
	if !anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}
	if !doublestar.ValidatePattern(line) {
		return fmt.Errorf("%w: %q", ErrBadPattern, line)
	}

	p.glob = line
	m.patterns = append(m.patterns, p)
	return nil
}

// LoadFile adds the patterns of a gitignore-style file. A missing file is
// not an error.
func (m *Matcher) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := m.Add(scanner.Text()); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return scanner.Err()
}

// Match reports whether rel, a slash- or OS-separated path relative to the
// watched root, is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")

	ignored := false
	for _, p := range m.patterns {
		var hit bool
		if p.dirOnly && !isDir {
			hit = matchParent(p.glob, rel)
		} else {
			hit = matchGlob(p.glob, rel)
		}
		if hit {
			ignored = !p.negated
		}
	}
	return ignored
}

// matchParent reports whether any proper parent directory of rel matches.
func matchParent(glob, rel string) bool {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if matchGlob(glob, strings.Join(parts[:i], "/")) {
			return true
		}
	}
	return false
}

func matchGlob(glob, rel string) bool {
	if ok, _ := doublestar.Match(glob, rel); ok {
		return true
	}
	// "vendor" also covers everything below vendor/.
	if !strings.HasSuffix(glob, "/**") {
		ok, _ := doublestar.Match(glob+"/**", rel)
		return ok
	}
	return false
}

// Defaults are always ignored: version control metadata and editor scratch
// files.
var Defaults = []string{
	".git/",
	".hg/",
	".svn/",
	".DS_Store",
	"*.swp",
	"*.swo",
	"*~",
	"4913",
}

// LoadFromDir builds the matcher for a watched root: Defaults, then dataDir
// (relative to root) when it lies inside root, then .gitignore, then
// .affectedignore, then extra.
func LoadFromDir(root, dataDir string, extra []string) (*Matcher, error) {
	m, err := New(Defaults...)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		if rel, ok := within(root, dataDir); ok && rel != "." {
			if err := m.Add("/" + filepath.ToSlash(rel) + "/"); err != nil {
				return nil, err
			}
		}
	}
	for _, name := range []string{".gitignore", FileName} {
		if err := m.LoadFile(filepath.Join(root, name)); err != nil {
			return nil, err
		}
	}
	for _, line := range extra {
		if err := m.Add(line); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func within(root, path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
