// Package main provides the affected CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"affected/internal/config"
	"affected/internal/report"
)

// Version is the current affected CLI version
var Version = "0.3.0"

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "affected",
	Short: "Find the build targets and packages affected by a set of changed files",
	Long: `affected reads a manifest of packages and targets, takes a set of changed files
(from arguments, a file list, a unified patch, a git range or the worktree) and
reports every target and root package that contains a changed file or depends
on something that does.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var targetsCmd = &cobra.Command{
	Use:   "targets [files...]",
	Short: "Report affected targets and packages",
	Long: `Report affected targets and packages.

Changed files are collected from every given input and combined:
  affected targets Sources/Lib/a.go
  git diff --name-only main | affected targets --files-from -
  git diff main | affected targets --patch -
  affected targets --git-range origin/main..HEAD
  affected targets --worktree`,
	RunE: runTargets,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the resolved manifest with every source pattern expanded",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the manifest directory and report affected units on every change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the records of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List output formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, f := range report.Formats() {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

var (
	filesFrom string
	patchFile string
	gitRange  string
	worktree  bool
	repoPath  string
	record    bool
	logLimit  int
)

func init() {
	d := config.Defaults()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./"+config.DefaultConfigFile+" if present)")
	pf.String("manifest", d.Manifest, "Path to the package/target manifest")
	pf.StringP("format", "f", d.Format, "Output format (json, text, dot, flatlist)")
	pf.StringP("out", "o", d.Out, "Write output to this file instead of stdout")
	pf.String("data-dir", d.DataDir, "Directory for the run history")
	pf.Int("workers", d.Workers, "Concurrent propagation passes")
	pf.Bool("debug", d.Debug, "Enable debug logging")

	targetsCmd.Flags().StringVar(&filesFrom, "files-from", "", "Read changed paths from this file, one per line (- for stdin)")
	targetsCmd.Flags().StringVar(&patchFile, "patch", "", "Read changed paths from a unified diff (- for stdin)")
	targetsCmd.Flags().StringVar(&gitRange, "git-range", "", "Use the files changed between two git revisions (BASE..HEAD)")
	targetsCmd.Flags().BoolVar(&worktree, "worktree", false, "Use uncommitted and untracked files in the git worktree")
	targetsCmd.Flags().StringVar(&repoPath, "repo", ".", "Path inside the git repository")
	targetsCmd.Flags().BoolVar(&record, "record", false, "Save this run to the run history")

	watchCmd.Flags().Duration("debounce", d.Debounce, "Wait this long for changes to settle before reporting")
	watchCmd.Flags().StringSlice("ignore", nil, "Extra ignore patterns (gitignore syntax)")
	watchCmd.Flags().BoolVar(&record, "record", false, "Save every batch to the run history")

	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 10, "Number of runs to show (0 for all)")

	rootCmd.AddCommand(targetsCmd, graphCmd, watchCmd, logCmd, showCmd, formatsCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cmd.Flags(), cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	logger = newLogger(cmd.ErrOrStderr(), cfg.Debug)
	logger.Debug("config loaded", "manifest", cfg.Manifest, "format", cfg.Format, "workers", cfg.Workers)
	return nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
