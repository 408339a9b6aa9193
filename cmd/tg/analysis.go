package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Show every analysis of the current graph",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := analysisClient.Report(context.Background(), project)
		if err != nil {
			return fmt.Errorf("getting report: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printReport(stdout, r)
		return nil
	},
}

var criticalCmd = &cobra.Command{
	Use:     "critical",
	Short:   "Show the critical path and per-task schedule",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := analysisClient.CriticalPath(context.Background(), project)
		if err != nil {
			return fmt.Errorf("computing critical path: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printCriticalPath(stdout, r)
		return nil
	},
}

var levelsCmd = &cobra.Command{
	Use:     "levels",
	Short:   "Group tasks into parallelizable levels",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := tgClient.Levels(context.Background(), project)
		if err != nil {
			return fmt.Errorf("computing levels: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printLayers(stdout, r.Layers)
		return nil
	},
}

var cyclesCmd = &cobra.Command{
	Use:     "cycles",
	Short:   "List every dependency cycle",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := tgClient.Cycles(context.Background(), project)
		if err != nil {
			return fmt.Errorf("detecting cycles: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printCycles(stdout, r.Cycles)
		if !r.Acyclic {
			return fmt.Errorf("graph has %d cycle(s)", len(r.Cycles))
		}
		return nil
	},
}

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "List graph nodes with levels and flags",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := tgClient.Graph(context.Background(), project)
		if err != nil {
			return fmt.Errorf("getting graph: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		if !r.Acyclic {
			fmt.Fprintln(stdout, ui.RenderCritical("Graph is cyclic; levels are not available."))
		}
		printNodes(stdout, r.Nodes)
		return nil
	},
}

var workloadCmd = &cobra.Command{
	Use:     "workload",
	Short:   "Show per-assignee workload and team balance",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := analysisClient.Workload(context.Background(), project)
		if err != nil {
			return fmt.Errorf("analyzing workload: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printWorkload(stdout, r.Workload, r.TeamBalance)
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:     "recommend",
	Short:   "Rank assignees for unassigned tasks",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := analysisClient.Recommendations(context.Background(), project)
		if err != nil {
			return fmt.Errorf("recommending assignments: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printRecommendations(stdout, r.Recommendations)
		return nil
	},
}

var optimizeCmd = &cobra.Command{
	Use:     "optimize",
	Short:   "Propose reassignments that improve team balance",
	GroupID: "analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := analysisClient.Optimizations(context.Background(), project)
		if err != nil {
			return fmt.Errorf("optimizing assignments: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, p)
		}
		printPlan(stdout, p)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the taskgraph service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := analysisClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(stdout, map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(stdout, "Health: %s\n", status)
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
