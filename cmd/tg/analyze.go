package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/config"
	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/logging"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/snapshotfile"
	tgsync "github.com/alfredjeanlab/taskgraph/internal/sync"
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze --file <snapshot>",
	Short:   "Analyze a snapshot file without a server",
	GroupID: "analysis",
	Long: `Load a snapshot (JSON, or a JSONL export when the name ends in .jsonl)
and run the engine locally. "-" reads JSON from standard input.

--only selects one analysis: report (default), cycles, levels, critical,
workload, recommend or optimize.`,
	Annotations: map[string]string{offline: "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		only, _ := cmd.Flags().GetString("only")
		tuningFile, _ := cmd.Flags().GetString("tuning")
		logLevel, _ := cmd.Flags().GetString("log-level")

		logger, err := logging.New(os.Stderr, logLevel, logging.FormatText)
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(path)
		if err != nil {
			return err
		}
		e, err := newEngine(tuningFile, 0, logger)
		if err != nil {
			return err
		}
		return runAnalysis(e, snap, only)
	},
}

// loadSnapshot reads a JSON snapshot file, or a JSONL export by extension.
func loadSnapshot(path string) (*model.Snapshot, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open export: %w", err)
		}
		defer f.Close()
		snap, err := tgsync.ReadJSONL(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return snap, nil
	}
	return snapshotfile.Load(path)
}

// newEngine builds an engine from a tuning file ("" = defaults).
func newEngine(tuningFile string, cacheSize int, logger *slog.Logger) (*engine.Engine, error) {
	tuning, err := config.LoadTuning(tuningFile)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Workload:  tuning.WorkloadOptions(),
		Assign:    tuning.AssignOptions(),
		CacheSize: cacheSize,
	}, logger)
}

func runAnalysis(e *engine.Engine, snap *model.Snapshot, only string) error {
	switch only {
	case "", "report":
		r, err := e.Report(snap)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printReport(stdout, r)
		if !r.Acyclic {
			return fmt.Errorf("graph has %d cycle(s)", len(r.Cycles))
		}
		return nil

	case "cycles":
		cycles, err := e.DetectCycles(snap)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stdout, map[string]any{"acyclic": len(cycles) == 0, "cycles": cycles})
		}
		printCycles(stdout, cycles)
		if len(cycles) > 0 {
			return fmt.Errorf("graph has %d cycle(s)", len(cycles))
		}
		return nil

	case "levels":
		levels, err := e.AssignLevels(snap)
		if err != nil {
			return err
		}
		layers := layersOf(levels)
		if jsonOutput {
			return printJSON(stdout, map[string]any{"levels": levels, "layers": layers})
		}
		printLayers(stdout, layers)
		return nil

	case "critical":
		r, err := e.AnalyzeCriticalPath(snap)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stdout, r)
		}
		printCriticalPath(stdout, r)
		return nil

	case "workload":
		records := e.AnalyzeWorkload(snap)
		r, err := e.Report(snap)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stdout, map[string]any{"workload": records, "team_balance": r.TeamBalance})
		}
		printWorkload(stdout, records, r.TeamBalance)
		return nil

	case "recommend":
		recs, err := e.RecommendAssignments(snap)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stdout, map[string]any{"recommendations": recs})
		}
		printRecommendations(stdout, recs)
		return nil

	case "optimize":
		plan := e.OptimizeAssignments(snap)
		if jsonOutput {
			return printJSON(stdout, plan)
		}
		printPlan(stdout, plan)
		return nil
	}
	return fmt.Errorf("unknown analysis %q", only)
}

var importCmd = &cobra.Command{
	Use:     "import --file <snapshot>",
	Short:   "Bulk import tasks, dependencies and assignees",
	GroupID: "tasks",
	Long: `Send a snapshot file (JSON, or a JSONL export) to the server. The import
is rejected as a whole when its dependencies contain a cycle.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		snap, err := loadSnapshot(path)
		if err != nil {
			return err
		}
		if snap.ProjectID == "" && project != "" {
			snap.ProjectID = project
		}

		resp, err := tgClient.Import(context.Background(), snap, actor)
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, resp)
		}
		fmt.Fprintf(stdout, "Imported %d tasks, %d dependencies, %d assignees\n", resp.Tasks, resp.Dependencies, resp.Assignees)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringP("file", "f", "", "snapshot file (JSON or .jsonl export; - for stdin)")
	analyzeCmd.Flags().String("only", "report", "analysis to run")
	analyzeCmd.Flags().String("tuning", os.Getenv("TASKGRAPH_TUNING_FILE"), "engine tuning TOML file")
	analyzeCmd.Flags().String("log-level", "warn", "log level")

	importCmd.Flags().StringP("file", "f", "", "snapshot file (JSON or .jsonl export; - for stdin)")
}
