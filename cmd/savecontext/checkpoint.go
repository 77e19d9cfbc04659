package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/types"
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint",
	GroupID: "checkpoints",
	Short:   "Snapshot and restore a session's context items",
}

func init() {
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a checkpoint of the current session's context items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessID, err := sessionArg(cmd)
			if err != nil {
				return err
			}
			desc, _ := cmd.Flags().GetString("description")
			cp, err := store.CreateCheckpoint(rootCtx, sessID, args[0], desc, actor())
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "creating checkpoint", err)
			}
			emit(cp, func() { fmt.Printf("checkpoint %s created: %s\n", cp.ID, cp.Name) })
			return nil
		},
	}
	createCmd.Flags().String("session", "", "session id (defaults to SAVECONTEXT_SESSION_ID)")
	createCmd.Flags().String("description", "", "checkpoint description")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, err := store.GetCheckpoint(rootCtx, args[0])
			if err != nil {
				return notFoundOr(err, scerror.CodeCheckpointNotFound, "checkpoint %s not found", args[0])
			}
			emit(cp, func() { printCheckpoint(cp) })
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpoints for a session or project",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, _ := cmd.Flags().GetBool("project")
			var cps []*types.Checkpoint
			var err error
			if project {
				cwd, werr := os.Getwd()
				if werr != nil {
					return scerror.Wrap(scerror.CodeIOError, "resolving current directory", werr)
				}
				cps, err = store.ListCheckpointsByProject(rootCtx, cwd)
			} else {
				sessID, serr := sessionArg(cmd)
				if serr != nil {
					return serr
				}
				cps, err = store.ListCheckpoints(rootCtx, sessID)
			}
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "listing checkpoints", err)
			}
			emit(cps, func() {
				for _, c := range cps {
					printCheckpoint(c)
				}
			})
			return nil
		},
	}
	listCmd.Flags().String("session", "", "session id (defaults to SAVECONTEXT_SESSION_ID)")
	listCmd.Flags().Bool("project", false, "list across every session in the current project instead")

	restoreCmd := &cobra.Command{
		Use:   "restore <checkpoint-id> <target-session-id>",
		Short: "Restore a checkpoint's items into a (usually new) session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoriesRaw, _ := cmd.Flags().GetString("categories")
			tagsRaw, _ := cmd.Flags().GetString("tags")
			var categories, tags []string
			if categoriesRaw != "" {
				categories = strings.Split(categoriesRaw, ",")
			}
			if tagsRaw != "" {
				tags = strings.Split(tagsRaw, ",")
			}
			n, err := store.RestoreCheckpoint(rootCtx, args[0], args[1], categories, tags, actor())
			if err != nil {
				return notFoundOr(err, scerror.CodeCheckpointNotFound, "checkpoint %s not found", args[0])
			}
			emit(map[string]int{"restored": n}, func() { fmt.Printf("restored %d item(s) into %s\n", n, args[1]) })
			return nil
		},
	}
	restoreCmd.Flags().String("categories", "", "only restore items in these comma-separated categories")
	restoreCmd.Flags().String("tags", "", "only restore items carrying these comma-separated tags")

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a checkpoint",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.DeleteCheckpoint(rootCtx, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodeCheckpointNotFound, "checkpoint %s not found", args[0])
			}
			fmt.Printf("deleted checkpoint %s\n", args[0])
			return nil
		},
	}

	checkpointCmd.AddCommand(createCmd, showCmd, listCmd, restoreCmd, deleteCmd)
}

func printCheckpoint(c *types.Checkpoint) {
	fmt.Printf("%s  %-20s %s\n", c.ID, c.Name, c.Description)
}
