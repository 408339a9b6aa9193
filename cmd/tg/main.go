package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/client"
	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

var (
	httpURL    string
	grpcAddr   string
	transport  string
	authToken  string
	project    string
	jsonOutput bool
	noColor    bool
	actor      string

	// tgClient serves task, dependency and assignee commands over HTTP.
	// analysisClient serves read-only analyses over the selected transport.
	tgClient       client.TaskGraphClient
	analysisClient client.AnalysisClient
)

func defaultActor() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func envOr(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// offline marks commands that never talk to the server.
const offline = "offline"

var rootCmd = &cobra.Command{
	Use:           "tg <command>",
	Short:         "Task dependency and scheduling engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Configure(noColor)
		if _, ok := cmd.Annotations[offline]; ok {
			return nil
		}

		httpClient := client.NewHTTPClient(httpURL, authToken)
		tgClient = httpClient
		switch transport {
		case "http":
			analysisClient = httpClient
		case "grpc":
			c, err := client.NewGRPCClient(grpcAddr, authToken)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			analysisClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if analysisClient != nil {
			_ = analysisClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", envOr("TASKGRAPH_HTTP_URL", "http://localhost:8080"), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "server", envOr("TASKGRAPH_SERVER", "localhost:9090"), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport for analyses (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("TASKGRAPH_AUTH_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVarP(&project, "project", "p", os.Getenv("TASKGRAPH_PROJECT"), "project to work on (empty = all tasks)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name for created_by fields")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "analysis", Title: "Analysis:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Tasks
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(assigneeCmd)
	rootCmd.AddCommand(importCmd)

	// Analysis
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(criticalCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(cyclesCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(workloadCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(analyzeCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderCritical("Error:"), err)
		os.Exit(1)
	}
}
