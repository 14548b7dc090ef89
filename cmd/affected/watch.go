package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"affected/internal/changes"
	"affected/internal/config"
	"affected/internal/graph"
	"affected/internal/ignore"
	"affected/internal/store"
	"affected/internal/watch"
)

func runWatch(cmd *cobra.Command, args []string) error {
	return watchLoop(cmd.Context(), cfg, cmd.OutOrStdout(), record, logger, nil)
}

// watchLoop re-runs the analysis for every batch of changes under the
// manifest directory until ctx is cancelled. A change to the manifest itself
// reloads the graph. ready, if non-nil, is closed once watching has started.
func watchLoop(ctx context.Context, c *config.Config, stdout io.Writer, save bool, log *slog.Logger, ready chan<- struct{}) error {
	manifestPath, err := filepath.Abs(c.Manifest)
	if err != nil {
		return fmt.Errorf("resolving manifest path: %w", err)
	}
	g, err := loadGraph(manifestPath)
	if err != nil {
		return err
	}

	root := filepath.Dir(manifestPath)
	matcher, err := ignore.LoadFromDir(root, c.DataDir, c.Ignore)
	if err != nil {
		return err
	}
	w, err := watch.New(root, watch.Options{Debounce: c.Debounce, Ignore: matcher, Logger: log})
	if err != nil {
		return err
	}
	defer w.Close()

	var db *store.DB
	if save {
		db, err = store.Open(c.HistoryPath())
		if err != nil {
			return err
		}
		defer db.Close()
	}

	log.Info("watching", "root", root, "targets", g.Len())
	if ready != nil {
		close(ready)
	}

	err = w.Run(ctx, func(ctx context.Context, batch changes.Set) error {
		if batch.Contains(manifestPath) {
			reloaded, err := loadGraph(manifestPath)
			if err != nil {
				log.Error("reloading manifest", "error", err)
				return nil
			}
			g = reloaded
			log.Info("manifest reloaded", "targets", g.Len())
		}
		return handleBatch(ctx, c, g, batch, stdout, db, log)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func handleBatch(ctx context.Context, c *config.Config, g *graph.Graph, batch changes.Set, stdout io.Writer, db *store.DB, log *slog.Logger) error {
	records, err := analyze(ctx, g, batch, c.Workers)
	if err != nil {
		return err
	}
	log.Info("changes", "files", batch.Len(), "affected", len(records))
	if err := emit(c, stdout, records); err != nil {
		return err
	}
	if db != nil {
		run, err := db.SaveRun(ctx, store.RunInput{Source: "watch", Changed: batch.Paths(), Records: records})
		if err != nil {
			return err
		}
		log.Debug("recorded run", "id", run.ID)
	}
	return nil
}
