package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/resolve"
	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/types"
)

var issueCmd = &cobra.Command{
	Use:     "issue",
	GroupID: "issues",
	Short:   "Manage issues",
}

func init() {
	createCmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			desc, _ := cmd.Flags().GetString("description")
			issueType, _ := cmd.Flags().GetString("type")
			priorityRaw, _ := cmd.Flags().GetString("priority")
			planID, _ := cmd.Flags().GetString("plan")
			dueRaw, _ := cmd.Flags().GetString("due")
			deferRaw, _ := cmd.Flags().GetString("defer")

			priority := 2
			if priorityRaw != "" {
				norm := resolve.NormalizePriority(priorityRaw)
				if p, perr := strconv.Atoi(norm); perr == nil {
					priority = p
				}
			}
			dueAt, err := parseSchedule(dueRaw)
			if err != nil {
				return err
			}
			deferUntil, err := parseSchedule(deferRaw)
			if err != nil {
				return err
			}

			issue := &types.Issue{
				ProjectPath: cwd,
				Title:       args[0],
				Description: desc,
				IssueType:   resolve.NormalizeIssueType(issueType),
				Priority:    priority,
				DueAt:       dueAt,
				DeferUntil:  deferUntil,
			}
			if planID != "" {
				issue.PlanID = &planID
			}

			created, err := store.CreateIssue(rootCtx, issue, actor())
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "creating issue", err)
			}
			emit(created, func() { fmt.Printf("created %s: %s\n", created.ShortID, created.Title) })
			return nil
		},
	}
	createCmd.Flags().String("description", "", "long-form description")
	createCmd.Flags().String("type", "task", "task, bug, feature, epic, or chore")
	createCmd.Flags().String("priority", "normal", "priority (0-4, or a synonym like urgent/high/low)")
	createCmd.Flags().String("plan", "", "parent plan id")
	createCmd.Flags().String("due", "", "natural-language due date, e.g. \"next friday\"")
	createCmd.Flags().String("defer", "", "natural-language defer-until date")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := store.GetIssue(rootCtx, args[0])
			if err != nil {
				return notFoundOr(err, scerror.CodeIssueNotFound, "issue %s not found", args[0])
			}
			deps, _ := store.GetDependencies(rootCtx, issue.ID)
			issue.Dependencies = deps
			labels, _ := store.GetLabels(rootCtx, issue.ID)
			issue.Labels = labels
			emit(issue, func() { printIssue(issue) })
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list [query]",
		Short: "Search/list issues",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			status, _ := cmd.Flags().GetString("status")
			issueType, _ := cmd.Flags().GetString("type")
			assignee, _ := cmd.Flags().GetString("assignee")
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			filter := types.IssueFilter{
				ProjectPath: cwd,
				Status:      resolve.NormalizeStatus(status),
				IssueType:   resolve.NormalizeIssueType(issueType),
				Assignee:    assignee,
			}
			issues, err := store.SearchIssues(rootCtx, query, filter)
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "searching issues", err)
			}
			emit(issues, func() {
				for _, i := range issues {
					printIssue(i)
				}
			})
			return nil
		},
	}
	listCmd.Flags().String("status", "", "filter by status")
	listCmd.Flags().String("type", "", "filter by issue type")
	listCmd.Flags().String("assignee", "", "filter by assignee")

	readyCmd := &cobra.Command{
		Use:   "ready",
		Short: "List unblocked, open issues ordered by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			limit, _ := cmd.Flags().GetInt("limit")
			issues, err := store.GetReadyWork(rootCtx, cwd, limit)
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "listing ready work", err)
			}
			emit(issues, func() {
				for _, i := range issues {
					printIssue(i)
				}
			})
			return nil
		},
	}
	readyCmd.Flags().Int("limit", 20, "maximum issues")

	claimCmd := &cobra.Command{
		Use:   "claim <id> <assignee>",
		Short: "Claim an issue for an assignee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.ClaimIssue(rootCtx, args[0], args[1], actor()); err != nil {
				return notFoundOr(err, scerror.CodeIssueNotFound, "issue %s not found", args[0])
			}
			fmt.Printf("%s claimed by %s\n", args[0], args[1])
			return nil
		},
	}

	releaseCmd := &cobra.Command{
		Use:   "release <id>",
		Short: "Release a claimed issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.ReleaseIssue(rootCtx, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodeIssueNotFound, "issue %s not found", args[0])
			}
			fmt.Printf("%s released\n", args[0])
			return nil
		},
	}

	closeCmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			if reason == "" {
				reason = "Closed"
			}
			if err := store.CloseIssue(rootCtx, args[0], reason, actor()); err != nil {
				return notFoundOr(err, scerror.CodeIssueNotFound, "issue %s not found", args[0])
			}
			fmt.Printf("%s closed: %s\n", args[0], reason)
			return nil
		},
	}
	closeCmd.Flags().String("reason", "", "close reason")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update issue fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := map[string]interface{}{}
			if v, _ := cmd.Flags().GetString("title"); v != "" {
				updates["title"] = v
			}
			if v, _ := cmd.Flags().GetString("description"); v != "" {
				updates["description"] = v
			}
			if v, _ := cmd.Flags().GetString("status"); v != "" {
				updates["status"] = resolve.NormalizeStatus(v)
			}
			if v, _ := cmd.Flags().GetString("priority"); v != "" {
				norm := resolve.NormalizePriority(v)
				if p, err := strconv.Atoi(norm); err == nil {
					updates["priority"] = p
				}
			}
			if v, _ := cmd.Flags().GetString("due"); v != "" {
				dueAt, err := parseSchedule(v)
				if err != nil {
					return err
				}
				updates["due_at"] = *dueAt
			}
			if v, _ := cmd.Flags().GetString("defer"); v != "" {
				deferUntil, err := parseSchedule(v)
				if err != nil {
					return err
				}
				updates["defer_until"] = *deferUntil
			}
			if len(updates) == 0 {
				return fatalf(scerror.CodeValidation, "no fields given to update")
			}
			if err := store.UpdateIssue(rootCtx, args[0], updates, actor()); err != nil {
				return notFoundOr(err, scerror.CodeIssueNotFound, "issue %s not found", args[0])
			}
			fmt.Printf("%s updated\n", args[0])
			return nil
		},
	}
	updateCmd.Flags().String("title", "", "new title")
	updateCmd.Flags().String("description", "", "new description")
	updateCmd.Flags().String("status", "", "new status")
	updateCmd.Flags().String("priority", "", "new priority")
	updateCmd.Flags().String("due", "", "natural-language due date, e.g. \"next friday\"")
	updateCmd.Flags().String("defer", "", "natural-language defer-until date")

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an issue",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.DeleteIssue(rootCtx, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodeIssueNotFound, "issue %s not found", args[0])
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	depCmd := &cobra.Command{Use: "dep", Short: "Manage issue dependencies"}
	depAddCmd := &cobra.Command{
		Use:   "add <issue-id> <depends-on-id>",
		Short: "Add a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			depType, _ := cmd.Flags().GetString("type")
			if depType == "" {
				depType = types.DependencyBlocks
			}
			dep := &types.Dependency{IssueID: args[0], DependsOnID: args[1], Type: depType}
			if err := store.AddDependency(rootCtx, dep, actor()); err != nil {
				return scerror.Wrap(scerror.CodeDependencyError, "adding dependency", err)
			}
			fmt.Printf("%s now depends on %s\n", args[0], args[1])
			return nil
		},
	}
	depAddCmd.Flags().String("type", "", "blocks, parent-child, or duplicate-of")
	depRemoveCmd := &cobra.Command{
		Use:   "remove <issue-id> <depends-on-id>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.RemoveDependency(rootCtx, args[0], args[1], actor()); err != nil {
				return scerror.Wrap(scerror.CodeDependencyError, "removing dependency", err)
			}
			fmt.Printf("removed dependency %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	depCmd.AddCommand(depAddCmd, depRemoveCmd)

	labelCmd := &cobra.Command{Use: "label", Short: "Manage issue labels"}
	labelAddCmd := &cobra.Command{
		Use:   "add <issue-id> <label>",
		Short: "Add a label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.AddLabel(rootCtx, args[0], args[1], actor()); err != nil {
				return scerror.Wrap(scerror.CodeInternal, "adding label", err)
			}
			fmt.Printf("labeled %s: %s\n", args[0], args[1])
			return nil
		},
	}
	labelRemoveCmd := &cobra.Command{
		Use:   "remove <issue-id> <label>",
		Short: "Remove a label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.RemoveLabel(rootCtx, args[0], args[1], actor()); err != nil {
				return scerror.Wrap(scerror.CodeInternal, "removing label", err)
			}
			fmt.Printf("unlabeled %s: %s\n", args[0], args[1])
			return nil
		},
	}
	labelCmd.AddCommand(labelAddCmd, labelRemoveCmd)

	commentCmd := &cobra.Command{
		Use:   "comment <issue-id> <text>",
		Short: "Add a comment to an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := store.AddIssueComment(rootCtx, args[0], actor(), args[1])
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "adding comment", err)
			}
			emit(c, func() { fmt.Printf("commented on %s\n", args[0]) })
			return nil
		},
	}

	issueCmd.AddCommand(createCmd, showCmd, listCmd, readyCmd, claimCmd, releaseCmd, closeCmd, updateCmd, deleteCmd, depCmd, labelCmd, commentCmd)
}

func printIssue(i *types.Issue) {
	fmt.Printf("%s  %-11s p%d  %-8s %s\n", i.ShortID, renderStatus(i.Status), i.Priority, i.IssueType, i.Title)
}
