package changes

import (
	"fmt"

	"affected/internal/gitio"
)

// FromGitRange collects the files that differ between BASE and HEAD of rng
// ("BASE..HEAD"), as absolute paths under the repository root.
func FromGitRange(repo *gitio.Repository, rng string) (Set, error) {
	base, head, err := SplitRange(rng)
	if err != nil {
		return Set{}, err
	}
	paths, err := repo.DiffPaths(base, head)
	if err != nil {
		return Set{}, fmt.Errorf("diffing %s: %w", rng, err)
	}
	return NewSetRelative(repo.Root(), paths...), nil
}

// FromWorktree collects the files with uncommitted changes, including
// untracked files.
func FromWorktree(repo *gitio.Repository) (Set, error) {
	paths, err := repo.WorktreeChanges()
	if err != nil {
		return Set{}, err
	}
	return NewSetRelative(repo.Root(), paths...), nil
}
