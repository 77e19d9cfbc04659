package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/scerror"
	syncpkg "github.com/savecontext/savecontext/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Export, import, and watch the project's LDJSON sync directory",
}

// syncDirFor returns the conventional per-project sync directory,
// <project>/.savecontext/ (spec.md §6), honoring an explicit override.
func syncDirFor(cmd *cobra.Command, projectPath string) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return filepath.Join(projectPath, ".savecontext")
}

func init() {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Snapshot-export the current project's records to LDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			force, _ := cmd.Flags().GetBool("force")
			dir := syncDirFor(cmd, cwd)

			needsBackfill, err := syncpkg.NeedsBackfill(rootCtx, store, cwd, dir)
			if err != nil {
				return scerror.Wrap(scerror.CodeSyncError, "checking backfill status", err)
			}
			if needsBackfill {
				if err := syncpkg.Backfill(rootCtx, store, cwd); err != nil {
					return scerror.Wrap(scerror.CodeSyncError, "backfilling dirty flags", err)
				}
			}

			result, err := syncpkg.Export(rootCtx, store, cwd, dir, force)
			if err != nil {
				return scerror.Wrap(scerror.CodeSyncError, "exporting", err)
			}
			emit(result, func() {
				if result.Nothing {
					fmt.Println("nothing to export")
					return
				}
				for kind, n := range result.PerKind {
					fmt.Printf("%s: %d record(s)\n", kind, n)
				}
				fmt.Printf("deletions: %d\n", result.Deletions)
			})
			return nil
		},
	}
	exportCmd.Flags().Bool("force", false, "export even if it would drop records the existing file still mentions")
	exportCmd.Flags().String("dir", "", "sync directory (defaults to <project>/.savecontext)")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import LDJSON records from a sync directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			dir := syncDirFor(cmd, cwd)
			strategyRaw, _ := cmd.Flags().GetString("strategy")
			strategy := syncpkg.MergeStrategy(strategyRaw)

			result, err := syncpkg.Import(rootCtx, store, dir, strategy, actor())
			if err != nil {
				return scerror.Wrap(scerror.CodeSyncError, "importing", err)
			}
			emit(result, func() {
				fmt.Printf("created: %d  updated: %d  skipped: %d  deleted: %d\n",
					result.Created, result.Updated, result.Skipped, result.Deleted)
			})
			return nil
		},
	}
	importCmd.Flags().String("dir", "", "sync directory (defaults to <project>/.savecontext)")
	importCmd.Flags().String("strategy", string(syncpkg.PreferNewer), "prefer-newer, prefer-local, or prefer-external")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report dirty/total counts and export file state for the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			dir := syncDirFor(cmd, cwd)
			status, err := syncpkg.GetStatus(rootCtx, store, cwd, dir)
			if err != nil {
				return scerror.Wrap(scerror.CodeSyncError, "getting sync status", err)
			}
			emit(status, func() {
				if status.NeedsBackfill {
					fmt.Println("backfill needed: first export on a project with existing records")
				}
				for _, e := range status.Entities {
					fmt.Printf("%-14s dirty=%d total=%d\n", e.Kind, e.DirtyCount, e.TotalCount)
				}
				for _, f := range status.Files {
					if !f.Exists {
						continue
					}
					fmt.Printf("%-20s %8d bytes  %6d line(s)\n", f.Kind, f.SizeBytes, f.Lines)
				}
			})
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "sync directory (defaults to <project>/.savecontext)")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the sync directory and import peers' changes as they occur (local changes are not exported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			dir := syncDirFor(cmd, cwd)

			ctx, cancel := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			w, err := syncpkg.NewWatcher(ctx, dir, syncpkg.WatchOptions{
				OnImportNeeded: func() {
					if _, err := syncpkg.Import(ctx, store, dir, syncpkg.PreferNewer, actor()); err != nil {
						fmt.Fprintf(os.Stderr, "sync watch: import failed: %v\n", err)
					}
				},
			})
			if err != nil {
				return scerror.Wrap(scerror.CodeSyncError, "starting watcher", err)
			}
			defer w.Close()

			fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", dir)
			<-ctx.Done()
			return nil
		},
	}
	watchCmd.Flags().String("dir", "", "sync directory (defaults to <project>/.savecontext)")

	syncCmd.AddCommand(exportCmd, importCmd, statusCmd, watchCmd)
}
