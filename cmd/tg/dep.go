package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/client"
	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	Short:   "Manage dependencies between tasks",
	GroupID: "tasks",
}

func depRequest(cmd *cobra.Command, args []string) *client.DependencyRequest {
	kind, _ := cmd.Flags().GetString("kind")
	return &client.DependencyRequest{
		PrerequisiteID: args[0],
		DependentID:    args[1],
		Kind:           kind,
		CreatedBy:      actor,
	}
}

var depAddCmd = &cobra.Command{
	Use:   "add <prerequisite-id> <dependent-id>",
	Short: "Make one task depend on another",
	Long: `Add an edge meaning <prerequisite-id> must come before <dependent-id>.

The edge is rejected, and nothing is stored, when it would close a cycle.
The rejected cycle is printed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, created, err := tgClient.AddDependency(context.Background(), depRequest(cmd, args))
		if cycle, ok := client.IsCycleRejection(err); ok {
			if jsonOutput {
				_ = printJSON(stdout, map[string]any{"rejected": true, "cycle": cycle})
			} else {
				fmt.Fprintln(stdout, ui.RenderCritical("Rejected: the dependency would create a cycle"))
				printCycle(stdout, cycle)
			}
			return fmt.Errorf("dependency %s -> %s rejected", args[0], args[1])
		}
		if err != nil {
			return fmt.Errorf("adding dependency: %w", err)
		}

		if jsonOutput {
			return printJSON(stdout, map[string]any{"dependency": dep, "created": created})
		}
		if !created {
			fmt.Fprintf(stdout, "Dependency %s -> %s already exists\n", dep.PrerequisiteID, dep.DependentID)
			return nil
		}
		fmt.Fprintf(stdout, "Prerequisite: %s\n", dep.PrerequisiteID)
		fmt.Fprintf(stdout, "Dependent:    %s\n", dep.DependentID)
		fmt.Fprintf(stdout, "Kind:         %s\n", dep.Kind.OrDefault())
		if dep.CreatedBy != "" {
			fmt.Fprintf(stdout, "Created By:   %s\n", dep.CreatedBy)
		}
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <prerequisite-id> <dependent-id>",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		if err := tgClient.RemoveDependency(context.Background(), args[0], args[1], kind); err != nil {
			return fmt.Errorf("removing dependency: %w", err)
		}
		fmt.Fprintln(stdout, "Removed dependency")
		return nil
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List the dependencies touching a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := tgClient.ListDependencies(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("listing dependencies: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, deps)
		}
		printDependencies(stdout, deps)
		return nil
	},
}

var depCheckCmd = &cobra.Command{
	Use:   "check <prerequisite-id> <dependent-id>",
	Short: "Check whether a dependency would create a cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := analysisClient.CheckDependency(context.Background(), depRequest(cmd, args))
		if err != nil {
			return fmt.Errorf("checking dependency: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, res)
		}
		if !res.WouldCreateCycle {
			fmt.Fprintf(stdout, "%s -> %s is %s\n", res.PrerequisiteID, res.DependentID, ui.RenderOK("safe"))
			return nil
		}
		fmt.Fprintf(stdout, "%s -> %s would create a cycle\n", res.PrerequisiteID, res.DependentID)
		printCycle(stdout, res.Cycle)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{depAddCmd, depRemoveCmd, depCheckCmd} {
		c.Flags().StringP("kind", "k", "", "dependency kind (finish_to_start, start_to_start, finish_to_finish, start_to_finish)")
	}
	depCmd.AddCommand(depAddCmd, depRemoveCmd, depListCmd, depCheckCmd)
}
