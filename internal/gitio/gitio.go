// Package gitio provides the Git operations used to derive changed files,
// using go-git.
package gitio

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	root string
}

// Open opens the Git repository containing path, searching parent
// directories for the .git directory.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	root, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return nil, fmt.Errorf("resolving worktree root: %w", err)
	}

	return &Repository{repo: repo, root: root}, nil
}

// Root returns the absolute path of the worktree root. Paths returned by
// DiffPaths and WorktreeChanges are relative to it.
func (r *Repository) Root() string {
	return r.root
}

// ResolveRef resolves a revision (branch, tag, commit hash, HEAD~n, ...) to
// a commit.
func (r *Repository) ResolveRef(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit %s: %w", hash, err)
	}
	return commit, nil
}

// DiffPaths returns the slash-separated paths that differ between the trees
// of two revisions. Renames contribute both the old and the new path.
func (r *Repository) DiffPaths(base, head string) ([]string, error) {
	baseCommit, err := r.ResolveRef(base)
	if err != nil {
		return nil, err
	}
	headCommit, err := r.ResolveRef(head)
	if err != nil {
		return nil, err
	}

	baseTree, err := baseCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting base tree: %w", err)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting head tree: %w", err)
	}

	changes, err := baseTree.Diff(headTree)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	seen := make(map[string]bool)
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("reading change action: %w", err)
		}
		switch action {
		case merkletrie.Insert:
			seen[change.To.Name] = true
		case merkletrie.Delete:
			seen[change.From.Name] = true
		case merkletrie.Modify:
			seen[change.From.Name] = true
			seen[change.To.Name] = true
		}
	}
	return sortedKeys(seen), nil
}

// WorktreeChanges returns the paths with staged, unstaged or untracked
// changes relative to HEAD.
func (r *Repository) WorktreeChanges() ([]string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("getting worktree status: %w", err)
	}

	seen := make(map[string]bool)
	for path, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		seen[path] = true
		if s.Extra != "" {
			seen[s.Extra] = true
		}
	}
	return sortedKeys(seen), nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
