package gitio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with two commits:
//
//	1: lib.go, main.go, old.go
//	2: lib.go modified, old.go deleted, new.go added
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	commit := func(msg string) {
		_, err := wt.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)
	}

	write("lib.go", "package lib\n")
	write("main.go", "package main\n")
	write("old.go", "package lib\n")
	commit("initial")

	write("lib.go", "package lib\n\nconst X = 1\n")
	write("new.go", "package lib\n")
	_, err = wt.Remove("old.go")
	require.NoError(t, err)
	commit("second")

	return dir
}

func TestDiffPaths(t *testing.T) {
	dir := initRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	paths, err := repo.DiffPaths("HEAD~1", "HEAD")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib.go", "new.go", "old.go"}, paths)

	same, err := repo.DiffPaths("HEAD", "HEAD")
	require.NoError(t, err)
	assert.Empty(t, same)
}

func TestOpen_DetectsParentRepository(t *testing.T) {
	dir := initRepo(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0755))

	repo, err := Open(sub)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(repo.Root())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolveRef_Unknown(t *testing.T) {
	repo, err := Open(initRepo(t))
	require.NoError(t, err)

	_, err = repo.ResolveRef("no-such-branch")
	assert.Error(t, err)
}

func TestWorktreeChanges(t *testing.T) {
	dir := initRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)

	clean, err := repo.WorktreeChanges()
	require.NoError(t, err)
	assert.Empty(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.go"), []byte("package lib\n"), 0644))

	dirty, err := repo.WorktreeChanges()
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "untracked.go"}, dirty)
}
