package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"affected/internal/cas"
	"affected/internal/changes"
	"affected/internal/config"
	"affected/internal/gitio"
	"affected/internal/graph"
	"affected/internal/impact"
	"affected/internal/manifest"
	"affected/internal/report"
	"affected/internal/store"
)

// inputs names every place changed files can come from.
type inputs struct {
	Args      []string
	FilesFrom string
	Patch     string
	GitRange  string
	Worktree  bool
	Repo      string
}

// describe summarizes the inputs for the run history.
func (in inputs) describe() string {
	var parts []string
	if len(in.Args) > 0 {
		parts = append(parts, fmt.Sprintf("args(%d)", len(in.Args)))
	}
	if in.FilesFrom != "" {
		parts = append(parts, "files-from "+in.FilesFrom)
	}
	if in.Patch != "" {
		parts = append(parts, "patch "+in.Patch)
	}
	if in.GitRange != "" {
		parts = append(parts, "git "+in.GitRange)
	}
	if in.Worktree {
		parts = append(parts, "worktree")
	}
	return strings.Join(parts, ", ")
}

func runTargets(cmd *cobra.Command, args []string) error {
	in := inputs{
		Args:      args,
		FilesFrom: filesFrom,
		Patch:     patchFile,
		GitRange:  gitRange,
		Worktree:  worktree,
		Repo:      repoPath,
	}
	return targets(cmd.Context(), cfg, in, cmd.InOrStdin(), cmd.OutOrStdout(), record, logger)
}

// targets runs one analysis and writes the records to the configured output.
func targets(ctx context.Context, c *config.Config, in inputs, stdin io.Reader, stdout io.Writer, save bool, log *slog.Logger) error {
	g, err := loadGraph(c.Manifest)
	if err != nil {
		return err
	}
	changed, err := collectChanges(in, stdin, log)
	if err != nil {
		return err
	}
	log.Debug("changed files", "count", changed.Len())

	records, err := analyze(ctx, g, changed, c.Workers)
	if err != nil {
		return err
	}
	if err := emit(c, stdout, records); err != nil {
		return err
	}

	if save {
		run, err := saveRun(ctx, c, store.RunInput{Source: in.describe(), Changed: changed.Paths(), Records: records})
		if err != nil {
			return err
		}
		log.Info("recorded run", "id", cas.Short(run.ID), "records", run.Records)
	}
	return nil
}

// loadGraph loads the manifest and resolves it against its own directory.
func loadGraph(path string) (*graph.Graph, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return m.Resolve(filepath.Dir(m.File()))
}

func analyze(ctx context.Context, g *graph.Graph, changed changes.Set, workers int) ([]report.Record, error) {
	res, err := impact.Compute(ctx, g, changed, impact.WithWorkers(workers))
	if err != nil {
		return nil, fmt.Errorf("computing impact: %w", err)
	}
	return report.Project(res), nil
}

// collectChanges unions every requested input. Positional arguments and
// --files-from are relative to the working directory; patch, range and
// worktree paths are relative to the repository root.
func collectChanges(in inputs, stdin io.Reader, log *slog.Logger) (changes.Set, error) {
	if in.FilesFrom == "-" && in.Patch == "-" {
		return changes.Set{}, errors.New("--files-from and --patch cannot both read stdin")
	}

	sets := []changes.Set{changes.NewSet(in.Args...)}

	if in.FilesFrom != "" {
		s, err := readInput(in.FilesFrom, stdin, func(r io.Reader) (changes.Set, error) {
			return changes.FromList("", r)
		})
		if err != nil {
			return changes.Set{}, err
		}
		sets = append(sets, s)
	}

	var repo *gitio.Repository
	openRepo := func() (*gitio.Repository, error) {
		if repo != nil {
			return repo, nil
		}
		r, err := gitio.Open(in.Repo)
		if err != nil {
			return nil, err
		}
		repo = r
		log.Debug("opened repository", "root", r.Root())
		return r, nil
	}

	if in.Patch != "" {
		root := ""
		if r, err := openRepo(); err == nil {
			root = r.Root()
		}
		s, err := readInput(in.Patch, stdin, func(r io.Reader) (changes.Set, error) {
			return changes.FromPatch(root, r)
		})
		if err != nil {
			return changes.Set{}, err
		}
		sets = append(sets, s)
	}

	if in.GitRange != "" {
		r, err := openRepo()
		if err != nil {
			return changes.Set{}, err
		}
		s, err := changes.FromGitRange(r, in.GitRange)
		if err != nil {
			return changes.Set{}, err
		}
		sets = append(sets, s)
	}

	if in.Worktree {
		r, err := openRepo()
		if err != nil {
			return changes.Set{}, err
		}
		s, err := changes.FromWorktree(r)
		if err != nil {
			return changes.Set{}, err
		}
		sets = append(sets, s)
	}

	return changes.Union(sets...), nil
}

// readInput opens path, or uses stdin for "-", and hands it to parse.
func readInput(path string, stdin io.Reader, parse func(io.Reader) (changes.Set, error)) (changes.Set, error) {
	if path == "-" {
		return parse(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return changes.Set{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

// emit renders records in the configured format to --out or stdout.
func emit(c *config.Config, stdout io.Writer, records []report.Record) error {
	e, err := report.NewEmitter(c.Format)
	if err != nil {
		return err
	}
	return writeOutput(c.Out, stdout, func(w io.Writer) error {
		return e.Emit(w, records)
	})
}

// writeOutput calls write with stdout when out is empty or "-", otherwise
// with the file at out.
func writeOutput(out string, stdout io.Writer, write func(io.Writer) error) error {
	if out == "" || out == "-" {
		return write(stdout)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func saveRun(ctx context.Context, c *config.Config, in store.RunInput) (*store.Run, error) {
	db, err := store.Open(c.HistoryPath())
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.SaveRun(ctx, in)
}

func runGraph(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(cfg.Manifest)
	if err != nil {
		return err
	}
	data, err := manifest.FromGraph(g).Marshal()
	if err != nil {
		return err
	}
	return writeOutput(cfg.Out, cmd.OutOrStdout(), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
