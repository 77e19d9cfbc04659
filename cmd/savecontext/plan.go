package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/scerror"
	"github.com/savecontext/savecontext/internal/types"
)

var planCmd = &cobra.Command{
	Use:     "plan",
	GroupID: "plans",
	Short:   "Manage project-scoped plan documents",
}

func init() {
	createCmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			body, _ := cmd.Flags().GetString("body")
			criteria, _ := cmd.Flags().GetString("success-criteria")
			session, _ := cmd.Flags().GetString("session")
			sourceFile, _ := cmd.Flags().GetString("source-file")
			dueRaw, _ := cmd.Flags().GetString("due")
			deferRaw, _ := cmd.Flags().GetString("defer")

			dueAt, err := parseSchedule(dueRaw)
			if err != nil {
				return err
			}
			deferUntil, err := parseSchedule(deferRaw)
			if err != nil {
				return err
			}

			plan := &types.Plan{
				ProjectPath:     cwd,
				SessionID:       session,
				Title:           args[0],
				Body:            body,
				SuccessCriteria: criteria,
				Status:          types.PlanDraft,
				SourceFile:      sourceFile,
				DueAt:           dueAt,
				DeferUntil:      deferUntil,
			}
			created, err := store.CreatePlan(rootCtx, plan, actor())
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "creating plan", err)
			}
			emit(created, func() { fmt.Printf("created %s: %s\n", created.ShortID, created.Title) })
			return nil
		},
	}
	createCmd.Flags().String("body", "", "markdown body")
	createCmd.Flags().String("success-criteria", "", "success criteria")
	createCmd.Flags().String("session", "", "session to bind this plan to")
	createCmd.Flags().String("source-file", "", "path of the external file this plan was imported from")
	createCmd.Flags().String("due", "", "natural-language due date, e.g. \"next friday\"")
	createCmd.Flags().String("defer", "", "natural-language defer-until date")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a plan, rendering its body as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := store.GetPlan(rootCtx, args[0])
			if err != nil {
				return notFoundOr(err, scerror.CodePlanNotFound, "plan %s not found", args[0])
			}
			emit(plan, func() { printPlan(plan) })
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List plans for the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return scerror.Wrap(scerror.CodeIOError, "resolving current directory", err)
			}
			plans, err := store.ListPlans(rootCtx, cwd)
			if err != nil {
				return scerror.Wrap(scerror.CodeInternal, "listing plans", err)
			}
			emit(plans, func() {
				for _, p := range plans {
					fmt.Printf("%s  %-10s %s\n", p.ShortID, renderStatus(p.Status), p.Title)
				}
			})
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <id> <draft|active|completed>",
		Short: "Transition a plan's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.UpdatePlanStatus(rootCtx, args[0], args[1], actor()); err != nil {
				return notFoundOr(err, scerror.CodePlanNotFound, "plan %s not found", args[0])
			}
			fmt.Printf("%s is now %s\n", args[0], args[1])
			return nil
		},
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule <id>",
		Short: "Set a plan's due and/or defer-until date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueRaw, _ := cmd.Flags().GetString("due")
			deferRaw, _ := cmd.Flags().GetString("defer")
			dueAt, err := parseSchedule(dueRaw)
			if err != nil {
				return err
			}
			deferUntil, err := parseSchedule(deferRaw)
			if err != nil {
				return err
			}
			if err := store.UpdatePlanSchedule(rootCtx, args[0], dueAt, deferUntil, actor()); err != nil {
				return notFoundOr(err, scerror.CodePlanNotFound, "plan %s not found", args[0])
			}
			fmt.Printf("rescheduled plan %s\n", args[0])
			return nil
		},
	}
	scheduleCmd.Flags().String("due", "", "natural-language due date, e.g. \"next friday\"")
	scheduleCmd.Flags().String("defer", "", "natural-language defer-until date")

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a plan",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.DeletePlan(rootCtx, args[0], actor()); err != nil {
				return notFoundOr(err, scerror.CodePlanNotFound, "plan %s not found", args[0])
			}
			fmt.Printf("deleted plan %s\n", args[0])
			return nil
		},
	}

	planCmd.AddCommand(createCmd, showCmd, listCmd, statusCmd, scheduleCmd, deleteCmd)
}

// printPlan renders a plan's markdown body through glamour for terminal
// display, falling back to the raw body if the renderer can't start (e.g.
// no terminal width can be detected).
func printPlan(p *types.Plan) {
	fmt.Printf("%s  %-10s %s\n", p.ShortID, renderStatus(p.Status), p.Title)
	if p.Body == "" {
		return
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		fmt.Println(p.Body)
		return
	}
	out, err := renderer.Render(p.Body)
	if err != nil {
		fmt.Println(p.Body)
		return
	}
	fmt.Print(out)
	if p.SuccessCriteria != "" {
		fmt.Printf("Success criteria: %s\n", p.SuccessCriteria)
	}
}
