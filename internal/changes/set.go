// Package changes builds the set of changed files that impact analysis runs
// against, from explicit lists, unified patches, git history or the worktree.
package changes

import (
	"path/filepath"
	"sort"
)

// Set is an immutable set of absolute, cleaned file paths.
type Set struct {
	paths map[string]struct{}
}

// NewSet builds a Set. Relative paths are resolved against the current
// working directory.
func NewSet(paths ...string) Set {
	return NewSetRelative("", paths...)
}

// NewSetRelative builds a Set, resolving relative paths against root. An
// empty root means the current working directory.
func NewSetRelative(root string, paths ...string) Set {
	s := Set{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		if p == "" {
			continue
		}
		s.paths[absolute(root, p)] = struct{}{}
	}
	return s
}

// Union returns a new Set containing the paths of all given sets.
func Union(sets ...Set) Set {
	out := Set{paths: make(map[string]struct{})}
	for _, s := range sets {
		for p := range s.paths {
			out.paths[p] = struct{}{}
		}
	}
	return out
}

// Contains reports whether path is in the set. The path must already be
// absolute and clean; no prefix or directory matching is performed.
func (s Set) Contains(path string) bool {
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of paths in the set.
func (s Set) Len() int {
	return len(s.paths)
}

// Paths returns the paths in lexical order.
func (s Set) Paths() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func absolute(root, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	if root != "" {
		return filepath.Join(root, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
