package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"affected/internal/cas"
	"affected/internal/config"
	"affected/internal/store"
)

func runLog(cmd *cobra.Command, args []string) error {
	return listRuns(cmd.Context(), cfg, cmd.OutOrStdout(), logLimit)
}

func listRuns(ctx context.Context, c *config.Config, w io.Writer, limit int) error {
	db, err := store.Open(c.HistoryPath())
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs. Use --record to save one.")
		return nil
	}
	for _, r := range runs {
		when := time.UnixMilli(r.CreatedAt).Format("2006-01-02 15:04:05")
		source := r.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(w, "%s  %s  %3d changed  %3d affected  %s\n", cas.Short(r.ID), when, r.Changed, r.Records, source)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	return showRun(cmd.Context(), cfg, cmd.OutOrStdout(), args[0])
}

func showRun(ctx context.Context, c *config.Config, w io.Writer, id string) error {
	db, err := store.Open(c.HistoryPath())
	if err != nil {
		return err
	}
	defer db.Close()

	_, records, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return emit(c, w, records)
}
