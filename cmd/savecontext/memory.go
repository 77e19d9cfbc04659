package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/types"
)

var memoryCmd = &cobra.Command{
	Use:     "memory",
	GroupID: "memory",
	Short:   "Manage per-project memory that outlasts sessions",
}

func init() {
	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a memory entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			category, _ := cmd.Flags().GetString("category")
			mem := &types.Memory{ProjectPath: cwd, Key: args[0], Value: args[1], Category: category}
			saved, err := store.SaveMemory(rootCtx, mem, actor())
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "saving memory", err)
			}
			emit(saved, func() { fmt.Printf("saved %s\n", saved.Key) })
			return nil
		},
	}
	setCmd.Flags().String("category", "", "free-text grouping label")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a memory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			mem, err := store.GetMemory(rootCtx, cwd, args[0])
			if err != nil {
				return notFoundOr(err, scerror.CodeMemoryNotFound, "no memory entry %q", args[0])
			}
			emit(mem, func() { fmt.Printf("%s = %s\n", mem.Key, mem.Value) })
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List memory entries for the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			mems, err := store.ListMemory(rootCtx, cwd)
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "listing memory", err)
			}
			emit(mems, func() {
				for _, m := range mems {
					fmt.Printf("%s = %s\n", m.Key, m.Value)
				}
			})
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Delete a memory entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			if err := store.DeleteMemory(rootCtx, cwd, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodeMemoryNotFound, "no memory entry %q", args[0])
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	memoryCmd.AddCommand(setCmd, getCmd, listCmd, deleteCmd)
}
