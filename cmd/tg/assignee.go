package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

var assigneeCmd = &cobra.Command{
	Use:     "assignee",
	Short:   "Manage the team roster",
	GroupID: "tasks",
}

var assigneeSetCmd = &cobra.Command{
	Use:   "set <id> <name>",
	Short: "Create or update an assignee",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := &model.Assignee{ID: args[0], Name: args[1]}
		a.Role, _ = cmd.Flags().GetString("role")
		a.CapacityHours, _ = cmd.Flags().GetFloat64("capacity")

		saved, err := tgClient.UpsertAssignee(context.Background(), a)
		if err != nil {
			return fmt.Errorf("saving assignee: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, saved)
		}
		printAssignees(stdout, []*model.Assignee{saved})
		return nil
	},
}

var assigneeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assignees",
	RunE: func(cmd *cobra.Command, args []string) error {
		assignees, err := tgClient.ListAssignees(context.Background())
		if err != nil {
			return fmt.Errorf("listing assignees: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, assignees)
		}
		printAssignees(stdout, assignees)
		return nil
	},
}

var assigneeRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an assignee from the roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tgClient.DeleteAssignee(context.Background(), args[0]); err != nil {
			return fmt.Errorf("removing assignee: %w", err)
		}
		fmt.Fprintf(stdout, "Removed %s\n", args[0])
		return nil
	},
}

func init() {
	assigneeSetCmd.Flags().StringP("role", "r", "", "role (junior, developer, senior, lead, ...)")
	assigneeSetCmd.Flags().Float64P("capacity", "c", 0, "weekly capacity in hours (0 = engine default)")
	assigneeCmd.AddCommand(assigneeSetCmd, assigneeListCmd, assigneeRemoveCmd)
}
