package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/embeddings"
	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/types"
)

var contextCmd = &cobra.Command{
	Use:     "context",
	GroupID: "context",
	Short:   "Manage context items within a session",
}

// sessionArg resolves the session id from the --session flag or the
// SAVECONTEXT_SESSION_ID environment variable, the CLI's equivalent of
// "the session the calling agent is currently inside".
func sessionArg(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("session")
	if id == "" {
		id = os.Getenv("SAVECONTEXT_SESSION_ID")
	}
	if id == "" {
		return "", noActiveSessionErr()
	}
	return id, nil
}

// noActiveSessionErr builds a NoActiveSession error augmented with recent
// resumable sessions in the current project, per spec.md §4.6's hinting
// behavior for terminal-to-session binding misses.
func noActiveSessionErr() error {
	err := scerror.New(scerror.CodeNoActiveSession, "no --session given and SAVECONTEXT_SESSION_ID is unset")
	cwd, werr := os.Getwd()
	if werr != nil {
		return err
	}
	sessions, serr := store.ListSessions(rootCtx, types.SessionFilter{ProjectPath: cwd})
	if serr != nil || len(sessions) == 0 {
		return err
	}
	names := make([]string, 0, 3)
	for i, s := range sessions {
		if i >= 3 {
			break
		}
		names = append(names, fmt.Sprintf("%s (%s, %s)", s.ID, s.Name, s.Status))
	}
	return err.WithHint("recent sessions: " + strings.Join(names, ", "))
}

func init() {
	saveCmd := &cobra.Command{
		Use:   "save <key> <value>",
		Short: "Save (or update) a keyed context item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessID, err := sessionArg(cmd)
			if err != nil {
				return err
			}
			category, _ := cmd.Flags().GetString("category")
			priority, _ := cmd.Flags().GetString("priority")
			channel, _ := cmd.Flags().GetString("channel")
			tagsRaw, _ := cmd.Flags().GetString("tags")

			if priority == "" {
				priority = types.PriorityNormal
			}
			var tags []string
			if tagsRaw != "" {
				tags = strings.Split(tagsRaw, ",")
			}

			item := &types.ContextItem{
				SessionID: sessID,
				Key:       args[0],
				Value:     args[1],
				Category:  category,
				Priority:  priority,
				Channel:   channel,
				Tags:      tags,
			}
			saved, err := store.SaveContextItem(rootCtx, item, actor())
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "saving context item", err)
			}

			if configEmbeddingsEnabled() {
				embeddings.SaveInline(rootCtx, store, fastEmbedder, saved)
			}
			maybeSpawnQualityUpgrade()

			emit(saved, func() { fmt.Printf("saved %s\n", saved.Key) })
			return nil
		},
	}
	saveCmd.Flags().String("session", "", "session id (defaults to SAVECONTEXT_SESSION_ID)")
	saveCmd.Flags().String("category", "", "free-text grouping label")
	saveCmd.Flags().String("priority", "", "low, normal, or high")
	saveCmd.Flags().String("channel", "", "logical sub-stream within the session")
	saveCmd.Flags().String("tags", "", "comma-separated tags")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List context items in a session or project",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, _ := cmd.Flags().GetBool("project")
			var items []*types.ContextItem
			var err error
			if project {
				cwd, werr := os.Getwd()
				if werr != nil {
					return scerror.Wrap(scerror.CodeIOError, "resolving current directory", werr)
				}
				items, err = store.ListContextItemsByProject(rootCtx, cwd)
			} else {
				sessID, serr := sessionArg(cmd)
				if serr != nil {
					return serr
				}
				items, err = store.ListContextItems(rootCtx, sessID)
			}
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "listing context items", err)
			}
			emit(items, func() {
				for _, it := range items {
					printContextItem(it)
				}
			})
			return nil
		},
	}
	listCmd.Flags().String("session", "", "session id (defaults to SAVECONTEXT_SESSION_ID)")
	listCmd.Flags().Bool("project", false, "list across every session in the current project instead")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a context item by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessID, err := sessionArg(cmd)
			if err != nil {
				return err
			}
			id, err := store.GetItemIDByKey(rootCtx, sessID, args[0])
			if err != nil {
				return notFoundOr(err, scerror.CodeValidation, "no context item with key %q", args[0])
			}
			item, err := store.GetContextItem(rootCtx, id)
			if err != nil {
				return notFoundOr(err, scerror.CodeValidation, "no context item with key %q", args[0])
			}
			emit(item, func() { printContextItem(item) })
			return nil
		},
	}
	getCmd.Flags().String("session", "", "session id (defaults to SAVECONTEXT_SESSION_ID)")

	deleteCmd := &cobra.Command{
		Use:     "delete <item-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a context item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := embeddings.DeleteEmbeddings(rootCtx, store, args[0]); err != nil {
				return scerror.Wrap(scerror.CodeEmbeddingError, "clearing embeddings", err)
			}
			if err := store.DeleteContextItem(rootCtx, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodeValidation, "context item %s not found", args[0])
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	contextCmd.AddCommand(saveCmd, listCmd, getCmd, deleteCmd)
}

func printContextItem(it *types.ContextItem) {
	cat := it.Category
	if cat != "" {
		cat = "[" + cat + "] "
	}
	fmt.Printf("%s  %s%s = %s\n", it.ID, cat, it.Key, truncate(it.Value, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// maybeSpawnQualityUpgrade fires the detached background upgrade process
// after an inline fast-embed, unless embeddings are disabled (spec.md
// §4.5 step 4).
func maybeSpawnQualityUpgrade() {
	if !configEmbeddingsEnabled() {
		return
	}
	logPath, err := embedBackgroundLogPath()
	if err != nil {
		return
	}
	_ = embeddings.SpawnBackgroundUpgrade(logPath)
}
