package main

import (
	"testing"

	"github.com/spf13/cobra"
)

// TestRootCommand tests that the root command is properly configured
func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}
	if rootCmd.Use != "affected" {
		t.Errorf("expected Use 'affected', got %q", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Short description should not be empty")
	}
	if rootCmd.Version != Version {
		t.Errorf("expected Version %q, got %q", Version, rootCmd.Version)
	}
}

// TestSubcommands checks that every subcommand is registered and runnable.
func TestSubcommands(t *testing.T) {
	tests := []struct {
		cmd *cobra.Command
		use string
	}{
		{targetsCmd, "targets [files...]"},
		{graphCmd, "graph"},
		{watchCmd, "watch"},
		{logCmd, "log"},
		{showCmd, "show <run-id>"},
		{formatsCmd, "formats"},
	}

	for _, tt := range tests {
		if tt.cmd.Use != tt.use {
			t.Errorf("expected Use %q, got %q", tt.use, tt.cmd.Use)
		}
		if tt.cmd.RunE == nil {
			t.Errorf("%s: RunE should not be nil", tt.use)
		}
		if tt.cmd.Parent() != rootCmd {
			t.Errorf("%s: should be registered on the root command", tt.use)
		}
	}
}

// TestPersistentFlags tests that config-backed flags exist on every command.
func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "manifest", "format", "out", "data-dir", "workers", "debug"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag --%s", name)
		}
	}
}

// TestTargetsFlags tests the change source flags
func TestTargetsFlags(t *testing.T) {
	for _, name := range []string{"files-from", "patch", "git-range", "worktree", "repo", "record"} {
		if targetsCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s on targets", name)
		}
	}
}

// TestWatchFlags tests the watch-only flags
func TestWatchFlags(t *testing.T) {
	for _, name := range []string{"debounce", "ignore", "record"} {
		if watchCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s on watch", name)
		}
	}
}

// TestLogFlags tests the log command's limit flag
func TestLogFlags(t *testing.T) {
	f := logCmd.Flags().Lookup("limit")
	if f == nil {
		t.Fatal("expected --limit flag")
	}
	if f.Shorthand != "n" {
		t.Errorf("expected shorthand 'n', got %q", f.Shorthand)
	}
	if f.DefValue != "10" {
		t.Errorf("expected default 10, got %s", f.DefValue)
	}
}

func TestShowRequiresID(t *testing.T) {
	if err := showCmd.Args(showCmd, nil); err == nil {
		t.Error("show without an id should fail")
	}
	if err := showCmd.Args(showCmd, []string{"abc"}); err != nil {
		t.Errorf("show with an id should pass: %v", err)
	}
}
