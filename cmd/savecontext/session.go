package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/types"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: "sessions",
	Short:   "Manage sessions",
}

func init() {
	startCmd := &cobra.Command{
		Use:   "start [name]",
		Short: "Start a new session anchored at the current directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			provider, _ := cmd.Flags().GetString("provider")
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			sess := &types.Session{
				Name:        name,
				ProjectPath: cwd,
				Provider:    provider,
				TerminalKey: terminalKey(),
				Status:      types.SessionActive,
			}
			if err := store.CreateSession(rootCtx, sess, actor()); err != nil {
				return scerror.Wrap(scerror.CodeInternal, "creating session", err)
			}
			emit(sess, func() { fmt.Printf("started session %s\n", sess.ID) })
			return nil
		},
	}
	startCmd.Flags().String("provider", "", "identifies the calling agent/tool (e.g. claude-code)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := store.GetSession(rootCtx, args[0])
			if err != nil {
				return notFoundOr(err, scerror.CodeSessionNotFound, "session %s not found", args[0])
			}
			emit(sess, func() { printSession(sess) })
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			all, _ := cmd.Flags().GetBool("all")
			filter := types.SessionFilter{Status: status}
			if !all {
				cwd, err := os.Getwd()
				if err == nil {
					filter.ProjectPath = cwd
				}
			}
			sessions, err := store.ListSessions(rootCtx, filter)
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "listing sessions", err)
			}
			emit(sessions, func() {
				for _, s := range sessions {
					printSession(s)
				}
			})
			return nil
		},
	}
	listCmd.Flags().String("status", "", "filter by status (active, paused, completed)")
	listCmd.Flags().Bool("all", false, "include sessions from every project, not just the current directory")

	endCmd := &cobra.Command{
		Use:   "end <id>",
		Short: "Mark a session completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.EndSession(rootCtx, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodeSessionNotFound, "session %s not found", args[0])
			}
			emit(map[string]string{"id": args[0], "status": types.SessionCompleted}, func() {
				fmt.Printf("ended session %s\n", args[0])
			})
			return nil
		},
	}

	renameCmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.RenameSession(rootCtx, args[0], args[1], actor()); err != nil {
				return notFoundOr(err, scerror.CodeSessionNotFound, "session %s not found", args[0])
			}
			emit(map[string]string{"id": args[0], "name": args[1]}, func() {
				fmt.Printf("renamed session %s to %q\n", args[0], args[1])
			})
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <id> <active|paused|completed>",
		Short: "Set a session's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.UpdateSessionStatus(rootCtx, args[0], args[1], actor()); err != nil {
				return notFoundOr(err, scerror.CodeSessionNotFound, "session %s not found", args[0])
			}
			emit(map[string]string{"id": args[0], "status": args[1]}, func() {
				fmt.Printf("session %s status -> %s\n", args[0], args[1])
			})
			return nil
		},
	}

	pathCmd := &cobra.Command{Use: "path", Short: "Manage a session's additional project paths"}
	pathAddCmd := &cobra.Command{
		Use:   "add <id> <path>",
		Short: "Attach an additional project path to a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.AddSessionPath(rootCtx, args[0], args[1], actor()); err != nil {
				return scerror.Wrap(scerror.CodeInternal, "adding session path", err)
			}
			fmt.Printf("added path %s to session %s\n", args[1], args[0])
			return nil
		},
	}
	pathRemoveCmd := &cobra.Command{
		Use:   "remove <id> <path>",
		Short: "Detach a project path from a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.RemoveSessionPath(rootCtx, args[0], args[1], actor()); err != nil {
				return scerror.Wrap(scerror.CodeInternal, "removing session path", err)
			}
			fmt.Printf("removed path %s from session %s\n", args[1], args[0])
			return nil
		},
	}
	pathCmd.AddCommand(pathAddCmd, pathRemoveCmd)

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session and its context items",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return fatalf(scerror.CodeValidation, "session delete requires --force")
			}
			if err := store.DeleteSession(rootCtx, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodeSessionNotFound, "session %s not found", args[0])
			}
			fmt.Printf("deleted session %s\n", args[0])
			return nil
		},
	}
	deleteCmd.Flags().Bool("force", false, "confirm deletion")

	sessionCmd.AddCommand(startCmd, showCmd, listCmd, endCmd, renameCmd, statusCmd, pathCmd, deleteCmd)
}

func printSession(s *types.Session) {
	name := s.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Printf("%s  %-10s %-20s %s\n", s.ID, s.Status, name, s.ProjectPath)
}

// notFoundOr classifies err as the given not-found code when it wraps
// storage.ErrNotFound, or as a generic internal error otherwise.
func notFoundOr(err error, code scerror.Code, format string, args ...interface{}) error {
	if errors.Is(err, storage.ErrNotFound) {
		return scerror.New(code, fmt.Sprintf(format, args...))
	}
	return scerror.Wrap(scerror.CodeInternal, "storage error", err)
}
