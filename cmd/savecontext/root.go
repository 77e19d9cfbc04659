package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/config"
	"github.com/savecontext/savecontext/internal/embeddings"
	"github.com/savecontext/savecontext/internal/resolve"
	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/storage/sqlite"
)

// rootCtx is the background context every command runs under. The engine
// has no long-running request lifecycle of its own (spec.md §5: a single
// local process per invocation), so a plain Background is sufficient.
var rootCtx = context.Background()

var (
	jsonOutput bool
	actorFlag  string
	dbFlag     string
	store      storage.Storage
)

var rootCmd = &cobra.Command{
	Use:           "savecontext",
	Short:         "Local knowledge store for AI coding agent sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return scerror.Wrap(scerror.CodeConfigError, "loading configuration", err)
		}
		if dbFlag != "" {
			config.Set("db", dbFlag)
		}
		loadSynonymPresets()

		// init manages its own database lifecycle (it creates the
		// database); every other command, including the hidden
		// process-embeddings verb, uses the store opened here.
		if cmd.Name() == "init" {
			return nil
		}

		path, err := config.DatabasePath()
		if err != nil {
			return scerror.Wrap(scerror.CodeConfigError, "resolving database path", err)
		}
		timeout := config.GetDuration("lock-timeout")
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		st, err := sqlite.Open(rootCtx, path, timeout)
		if err != nil {
			return scerror.Wrap(scerror.CodeNotInitialized, "opening database", err)
		}
		store = st
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "sessions", Title: "Sessions:"},
		&cobra.Group{ID: "context", Title: "Context items:"},
		&cobra.Group{ID: "issues", Title: "Issues:"},
		&cobra.Group{ID: "checkpoints", Title: "Checkpoints:"},
		&cobra.Group{ID: "memory", Title: "Memory:"},
		&cobra.Group{ID: "plans", Title: "Plans:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "override the resolved actor identity for audit trails")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "override the database file path")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(hiddenProcessEmbeddingsCmd)
}

// Execute runs the root command and returns its terminal error, if any.
func Execute() error {
	return rootCmd.Execute()
}

// actor resolves the acting identity for the current invocation.
func actor() string {
	return config.GetIdentity(actorFlag)
}

// terminalKey resolves the controlling-terminal correlation key, honoring
// the SAVECONTEXT_TERMINAL_KEY override via config.
func terminalKey() string {
	return resolve.TerminalKey(config.GetString("terminal-key"))
}

// emit writes v either as pretty JSON (--json) or via the given human
// renderer, mirroring the teacher's dual-mode output convention.
func emit(v interface{}, human func()) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	human()
}

// fatalf builds a scerror for a RunE to return; printing and the exit code
// are handled by main's exitCodeFor.
func fatalf(code scerror.Code, format string, args ...interface{}) error {
	return scerror.New(code, fmt.Sprintf(format, args...))
}

// fastEmbedder is the process-wide fast-tier provider, shared by every
// command that writes a context item.
var fastEmbedder = embeddings.NewFastModel()

// embedBackgroundLogPath is where the detached quality-upgrade process's
// stdout/stderr are rotated to.
func embedBackgroundLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home + "/.savecontext/logs/embeddings.log", nil
}

// configEmbeddingsEnabled reports whether the embeddings pipeline is on,
// per the embeddings.enabled config key (spec.md §4.5).
func configEmbeddingsEnabled() bool {
	return config.GetBool("embeddings.enabled")
}

// loadSynonymPresets merges an optional TOML synonym preset into the
// resolver's built-in status/type/priority tables, searched project first
// then user home, mirroring the teacher's formula search-path order.
// Absence of either file is not an error; a malformed one is logged and
// skipped rather than aborting the command.
func loadSynonymPresets() {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd+"/.savecontext/synonyms.toml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home+"/.savecontext/synonyms.toml")
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := resolve.LoadPresetFile(p); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping synonym preset %s: %v\n", p, err)
		}
	}
}
