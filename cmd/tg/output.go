package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/cpm"
	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/ui"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

const timeLayout = "2006-01-02 15:04:05"

var stdout io.Writer = os.Stdout

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func hours(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 1, 64) + "h"
}

func printTask(w io.Writer, t *model.Task) {
	fmt.Fprintf(w, "ID:          %s\n", t.ID)
	if t.ProjectID != "" {
		fmt.Fprintf(w, "Project:     %s\n", t.ProjectID)
	}
	fmt.Fprintf(w, "Title:       %s\n", t.Title)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(string(t.Status)))
	fmt.Fprintf(w, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(w, "Assignee:    %s\n", t.Assignee)
	fmt.Fprintf(w, "Estimate:    %s\n", hours(t.EstimatedHours))
	if t.ActualHours != nil {
		fmt.Fprintf(w, "Actual:      %s\n", hours(t.ActualHours))
	}
	if t.StoryPoints != nil {
		fmt.Fprintf(w, "Points:      %d\n", *t.StoryPoints)
	}
	if t.DueAt != nil {
		fmt.Fprintf(w, "Due At:      %s\n", t.DueAt.Format(timeLayout))
	}
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:  %s\n", t.CreatedAt.Format(timeLayout))
	}
	if !t.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:  %s\n", t.UpdatedAt.Format(timeLayout))
	}
}

func printTaskTable(w io.Writer, tasks []*model.Task, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tESTIMATE\tASSIGNEE\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, t.Priority, hours(t.EstimatedHours), t.Assignee, ui.Truncate(t.Title, 50))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d tasks (%d total)\n", len(tasks), total)
}

func printDependencies(w io.Writer, deps []*model.Dependency) {
	if len(deps) == 0 {
		fmt.Fprintln(w, "No dependencies found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PREREQUISITE\tDEPENDENT\tKIND\tCREATED_BY\tCREATED_AT")
	for _, d := range deps {
		createdAt := ""
		if !d.CreatedAt.IsZero() {
			createdAt = d.CreatedAt.Format(timeLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.PrerequisiteID, d.DependentID, d.Kind.OrDefault(), d.CreatedBy, createdAt)
	}
	tw.Flush()
}

func printAssignees(w io.Writer, assignees []*model.Assignee) {
	if len(assignees) == 0 {
		fmt.Fprintln(w, "No assignees found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tCAPACITY")
	for _, a := range assignees {
		capacity := "default"
		if a.CapacityHours > 0 {
			capacity = formatHours(a.CapacityHours)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Role, capacity)
	}
	tw.Flush()
}

func printCycle(w io.Writer, cycle []string) {
	fmt.Fprintf(w, "Cycle:       %s\n", ui.RenderPath(cycle))
}

func printCycles(w io.Writer, cycles [][]string) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, ui.RenderOK("No cycles: the graph is acyclic."))
		return
	}
	fmt.Fprintf(w, "%s\n", ui.RenderCritical(fmt.Sprintf("%d cycle(s) found", len(cycles))))
	for i, c := range cycles {
		fmt.Fprintf(w, "  %d. %s\n", i+1, ui.RenderPath(c))
	}
}

func printCriticalPath(w io.Writer, r *cpm.Result) {
	fmt.Fprintf(w, "Critical path: %s\n", ui.RenderPath(r.CriticalPath))
	fmt.Fprintf(w, "Length:        %s\n", formatHours(r.PathLength))
	if len(r.Unestimated) > 0 {
		fmt.Fprintf(w, "Unestimated:   %s\n", ui.RenderWarn(strings.Join(r.Unestimated, ", ")))
	}
	if len(r.Tasks) == 0 {
		return
	}

	order := r.TopoOrder
	if len(order) == 0 {
		for id := range r.Tasks {
			order = append(order, id)
		}
		sort.Strings(order)
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tDURATION\tES\tEF\tLS\tLF\tSLACK\tWAVE")
	for _, id := range order {
		ts, ok := r.Tasks[id]
		if !ok {
			continue
		}
		name := id
		if ts.IsCritical {
			name = ui.RenderCritical(id)
		}
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%g\t%g\t%g\t%d\n",
			name, ts.Duration, ts.ES, ts.EF, ts.LS, ts.LF, ts.Slack, ts.Wave)
	}
	tw.Flush()
}

// printLayers prints one line per level: "L0  A, B".
func printLayers(w io.Writer, layers [][]string) {
	if len(layers) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for i, ids := range layers {
		fmt.Fprintf(w, "%s  %s\n", ui.RenderAccent(fmt.Sprintf("L%d", i)), strings.Join(ids, ", "))
	}
}

// layersOf groups a level map into sorted layers.
func layersOf(levels map[string]int) [][]string {
	top := -1
	for _, l := range levels {
		if l > top {
			top = l
		}
	}
	layers := make([][]string, top+1)
	for id, l := range levels {
		layers[l] = append(layers[l], id)
	}
	for _, ids := range layers {
		sort.Strings(ids)
	}
	return layers
}

func printNodes(w io.Writer, nodes []graph.Node) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tLEVEL\tPREREQUISITES\tDEPENDENTS\tFLAGS")
	for _, n := range nodes {
		var flags []string
		if n.Critical {
			flags = append(flags, ui.RenderCritical("critical"))
		}
		if n.Blocked {
			flags = append(flags, ui.RenderWarn("blocked"))
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			n.TaskID, n.Level, strings.Join(n.Prerequisites, ","), strings.Join(n.Dependents, ","), strings.Join(flags, " "))
	}
	tw.Flush()
}

func printWorkload(w io.Writer, records []workload.Record, teamBalance float64) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No assignees.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSIGNEE\tTASKS\tHOURS\tCAPACITY\tUTIL\tEFFICIENCY\tBALANCE\tOVERDUE\tSTATE")
	for _, r := range records {
		state := ui.RenderOK("ok")
		switch {
		case r.Overloaded:
			state = ui.RenderCritical("overloaded")
		case r.Underloaded:
			state = ui.RenderWarn("underloaded")
		}
		name := r.AssigneeID
		if r.Name != "" {
			name += " (" + r.Name + ")"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.0f%%\t%.0f%%\t%.1f\t%d\t%s\n",
			name, r.TaskCount, formatHours(r.EstimatedHours), formatHours(r.CapacityHours),
			r.Utilization*100, r.Efficiency, r.BalanceScore, r.OverdueCount, state)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTeam balance: %.1f\n", teamBalance)
}

func printRecommendations(w io.Writer, recs map[string][]assign.Candidate) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No unassigned tasks.")
		return
	}
	ids := make([]string, 0, len(recs))
	for id := range recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "%s\n", ui.RenderAccent(id))
		cands := recs[id]
		if len(cands) == 0 {
			fmt.Fprintln(w, "  (no candidates)")
			continue
		}
		for i, c := range cands {
			fmt.Fprintf(w, "  %d. %-12s %6.1f  %s\n", i+1, c.AssigneeID, c.Score, ui.RenderMuted(strings.Join(c.Reasons, "; ")))
		}
	}
}

func printPlan(w io.Writer, p *assign.Plan) {
	fmt.Fprintf(w, "Balance:     %.1f -> %.1f\n", p.BalanceScore, p.ProjectedBalanceScore)
	if len(p.Recommendations) == 0 {
		fmt.Fprintln(w, ui.RenderOK("No reassignments needed."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tFROM\tTO\tHOURS\tIMPACT\tREASON")
	for _, m := range p.Recommendations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t+%.1f\t%s\n", m.TaskID, m.From, m.To, m.Hours, m.Impact, m.Reason)
	}
	tw.Flush()
}

func printReport(w io.Writer, r *engine.Report) {
	fmt.Fprintf(w, "Project:     %s\n", valueOr(r.ProjectID, "(all)"))
	fmt.Fprintf(w, "Tasks:       %d\n", r.TaskCount)
	fmt.Fprintf(w, "Edges:       %d\n", r.EdgeCount)
	fmt.Fprintf(w, "Generated:   %s\n", r.GeneratedAt.Local().Format(timeLayout))
	fmt.Fprintln(w)
	if !r.Acyclic {
		printCycles(w, r.Cycles)
	} else if r.CriticalPath != nil {
		printCriticalPath(w, r.CriticalPath)
	}
	fmt.Fprintln(w)
	printWorkload(w, r.Workload, r.TeamBalance)
	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recommendations:")
		printRecommendations(w, r.Recommendations)
	}
	if r.Optimization != nil {
		fmt.Fprintln(w)
		printPlan(w, r.Optimization)
	}
}

func printEvents(w io.Writer, events []*model.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "[%s] %-20s %s\n", e.CreatedAt.Format(timeLayout), e.Action(), ui.RenderMuted(e.Actor))
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func parseDue(s string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due date %q (use RFC 3339 or YYYY-MM-DD)", s)
}
