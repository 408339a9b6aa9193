package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/client"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Short:   "Manage tasks",
	GroupID: "tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.CreateTaskRequest{
			ProjectID: project,
			Title:     args[0],
			CreatedBy: actor,
		}
		req.ID, _ = cmd.Flags().GetString("id")
		req.Status, _ = cmd.Flags().GetString("status")
		req.Priority, _ = cmd.Flags().GetString("priority")
		req.Assignee, _ = cmd.Flags().GetString("assignee")
		if cmd.Flags().Changed("estimate") {
			v, _ := cmd.Flags().GetFloat64("estimate")
			req.EstimatedHours = &v
		}
		if cmd.Flags().Changed("points") {
			v, _ := cmd.Flags().GetInt("points")
			req.StoryPoints = &v
		}
		if due, _ := cmd.Flags().GetString("due"); due != "" {
			t, err := parseDue(due)
			if err != nil {
				return err
			}
			req.DueAt = t
		}

		task, err := tgClient.CreateTask(context.Background(), req)
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, task)
		}
		printTask(stdout, task)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task and its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		task, err := tgClient.GetTask(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting task: %w", err)
		}
		deps, err := tgClient.ListDependencies(ctx, args[0])
		if err != nil {
			return fmt.Errorf("listing dependencies: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, map[string]any{"task": task, "dependencies": deps})
		}
		printTask(stdout, task)
		if len(deps) > 0 {
			fmt.Fprintln(stdout)
			printDependencies(stdout, deps)
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, _ := cmd.Flags().GetStringSlice("status")
		priorities, _ := cmd.Flags().GetStringSlice("priority")
		filter := model.TaskFilter{ProjectID: project}
		for _, s := range statuses {
			filter.Status = append(filter.Status, model.Status(s))
		}
		for _, p := range priorities {
			filter.Priority = append(filter.Priority, model.Priority(p))
		}
		filter.Assignee, _ = cmd.Flags().GetString("assignee")
		filter.Search, _ = cmd.Flags().GetString("search")
		filter.Sort, _ = cmd.Flags().GetString("sort")
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		filter.Offset, _ = cmd.Flags().GetInt("offset")

		resp, err := tgClient.ListTasks(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, resp)
		}
		printTaskTable(stdout, resp.Tasks, resp.Total)
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := updateRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		task, err := tgClient.UpdateTask(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, task)
		}
		printTask(stdout, task)
		return nil
	},
}

// updateRequestFromFlags sends only the flags the user set.
func updateRequestFromFlags(cmd *cobra.Command) (*client.UpdateTaskRequest, error) {
	req := &client.UpdateTaskRequest{UpdatedBy: actor}
	str := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	req.Title = str("title")
	req.Status = str("status")
	req.Priority = str("priority")
	req.Assignee = str("assignee")
	if cmd.Flags().Changed("estimate") {
		v, _ := cmd.Flags().GetFloat64("estimate")
		req.EstimatedHours = &v
	}
	if cmd.Flags().Changed("actual") {
		v, _ := cmd.Flags().GetFloat64("actual")
		req.ActualHours = &v
	}
	if cmd.Flags().Changed("points") {
		v, _ := cmd.Flags().GetInt("points")
		req.StoryPoints = &v
	}
	if due := str("due"); due != nil {
		t, err := parseDue(*due)
		if err != nil {
			return nil, err
		}
		req.DueAt = t
	}
	req.Clear, _ = cmd.Flags().GetStringSlice("clear")
	return req, nil
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tgClient.DeleteTask(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		fmt.Fprintf(stdout, "Deleted %s\n", args[0])
		return nil
	},
}

var taskEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Show the event history of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := tgClient.GetEvents(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting events: %w", err)
		}
		if jsonOutput {
			return printJSON(stdout, events)
		}
		printEvents(stdout, events)
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().String("id", "", "task id (generated when empty)")
	taskCreateCmd.Flags().StringP("status", "s", "", "status (todo, in_progress, review, blocked, done, archived)")
	taskCreateCmd.Flags().String("priority", "", "priority (low, medium, high, urgent)")
	taskCreateCmd.Flags().StringP("assignee", "a", "", "assignee id")
	taskCreateCmd.Flags().Float64P("estimate", "e", 0, "estimated hours")
	taskCreateCmd.Flags().Int("points", 0, "story points")
	taskCreateCmd.Flags().String("due", "", "due date (RFC 3339 or YYYY-MM-DD)")

	taskListCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable)")
	taskListCmd.Flags().StringSlice("priority", nil, "filter by priority (repeatable)")
	taskListCmd.Flags().StringP("assignee", "a", "", "filter by assignee")
	taskListCmd.Flags().StringP("search", "q", "", "substring match on title")
	taskListCmd.Flags().String("sort", "", `sort order, e.g. "-priority" or "created_at"`)
	taskListCmd.Flags().Int("limit", 50, "maximum number of tasks to return")
	taskListCmd.Flags().Int("offset", 0, "offset for pagination")

	taskUpdateCmd.Flags().String("title", "", "new title")
	taskUpdateCmd.Flags().StringP("status", "s", "", "new status")
	taskUpdateCmd.Flags().String("priority", "", "new priority")
	taskUpdateCmd.Flags().StringP("assignee", "a", "", "new assignee id")
	taskUpdateCmd.Flags().Float64P("estimate", "e", 0, "estimated hours")
	taskUpdateCmd.Flags().Float64("actual", 0, "actual hours")
	taskUpdateCmd.Flags().Int("points", 0, "story points")
	taskUpdateCmd.Flags().String("due", "", "due date (RFC 3339 or YYYY-MM-DD)")
	taskUpdateCmd.Flags().StringSlice("clear", nil, "fields to unset (assignee, estimated_hours, actual_hours, story_points, due_at)")

	taskCmd.AddCommand(taskCreateCmd, taskShowCmd, taskListCmd, taskUpdateCmd, taskDeleteCmd, taskEventsCmd)
}
