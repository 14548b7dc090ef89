package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned for a malformed source or exclude pattern.
var ErrInvalidPattern = errors.New("invalid pattern")

const globMeta = "*?[{"

// isGlob reports whether p contains glob metacharacters.
func isGlob(p string) bool {
	return strings.ContainsAny(p, globMeta)
}

// escapeLiteral backslash-escapes a path that would otherwise read as a glob.
// Paths without metacharacters are returned unchanged.
func escapeLiteral(p string) string {
	if !isGlob(p) {
		return p
	}
	var sb strings.Builder
	for _, r := range p {
		if strings.ContainsRune(`*?[]{}\`, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// unescapeLiteral reverses escapeLiteral. It reports false when p still has
// an unescaped metacharacter and so is a real pattern.
func unescapeLiteral(p string) (string, bool) {
	var sb strings.Builder
	escaped := false
	for _, r := range p {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
			continue
		case strings.ContainsRune(globMeta, r):
			return "", false
		}
		sb.WriteRune(r)
	}
	return sb.String(), true
}

// existingFile reports whether path names a regular file or symlink.
func existingFile(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && !info.IsDir()
}

// expandSources turns patterns into absolute, cleaned, deduplicated paths.
// Globs are matched against the files under dir and sorted lexically within
// each pattern. Literal paths are kept whether or not they exist, so a deleted
// file still belongs to its target. A pattern naming an existing file, or one
// whose metacharacters are all backslash-escaped, is a literal path.
func expandSources(dir string, patterns, exclude []string) ([]string, error) {
	for _, ex := range exclude {
		if !doublestar.ValidatePattern(ex) {
			return nil, fmt.Errorf("%w: exclude %q", ErrInvalidPattern, ex)
		}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(abs string) {
		if seen[abs] || excluded(dir, abs, exclude) {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	fsys := os.DirFS(dir)
	for _, p := range patterns {
		if !isGlob(p) || existingFile(absJoin(dir, p)) {
			add(absJoin(dir, p))
			continue
		}
		if lit, ok := unescapeLiteral(p); ok {
			add(absJoin(dir, lit))
			continue
		}
		pattern := filepath.ToSlash(p)
		if filepath.IsAbs(p) {
			rel, err := filepath.Rel(dir, p)
			if err != nil || strings.HasPrefix(rel, "..") {
				return nil, fmt.Errorf("%w: %q is outside %s", ErrInvalidPattern, p, dir)
			}
			pattern = filepath.ToSlash(rel)
		}
		pattern = strings.TrimPrefix(pattern, "./")
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}

		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", p, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	return out, nil
}

func excluded(dir, abs string, exclude []string) bool {
	if len(exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, ex := range exclude {
		if ok, _ := doublestar.Match(ex, rel); ok {
			return true
		}
	}
	return false
}
