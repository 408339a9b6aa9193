// Package cpm computes the critical path of a task graph: the longest
// duration-weighted chain of dependent tasks, plus per-task earliest and
// latest schedules.
package cpm

import (
	"math"
	"sort"

	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// epsilon absorbs floating point error when comparing path sums.
const epsilon = 1e-9

// Durations maps every estimated task to its estimated hours. Tasks without
// an estimate are left out so Analyze reports them as unestimated.
func Durations(tasks []*model.Task) map[string]float64 {
	durations := make(map[string]float64, len(tasks))
	for _, t := range tasks {
		if t.IsEstimated() {
			durations[t.ID] = t.Hours()
		}
	}
	return durations
}

// Analyze performs critical path analysis on g. durations gives each task's
// duration in hours; a task missing from the map counts as 0 and is listed
// in Result.Unestimated. Negative durations count as 0.
//
// The result is a proper longest-path computation over the DAG: tasks
// running in parallel on shorter chains get positive slack and are not
// critical. A cyclic graph fails with graph.ErrCyclicGraph.
func Analyze(g *graph.Graph, durations map[string]float64) (*Result, error) {
	order, err := graph.TopoOrder(g)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Tasks:           make(map[string]*TaskSchedule, len(order)),
		CriticalTaskIDs: []string{},
		CriticalPath:    []string{},
		Unestimated:     []string{},
		TopoOrder:       order,
	}

	for _, id := range order {
		d, ok := durations[id]
		if !ok {
			result.Unestimated = append(result.Unestimated, id)
		}
		result.Tasks[id] = &TaskSchedule{TaskID: id, Duration: math.Max(d, 0), Estimated: ok}
	}
	sort.Strings(result.Unestimated)

	// Forward pass: ES = max(EF of all prerequisites).
	for _, id := range order {
		ts := result.Tasks[id]
		for _, p := range g.Prerequisites(id) {
			if ef := result.Tasks[p].EF; ef > ts.ES {
				ts.ES = ef
			}
		}
		ts.EF = ts.ES + ts.Duration
		if ts.EF > result.PathLength {
			result.PathLength = ts.EF
		}
	}

	// Backward pass: longest chain starting at each task, then latest times.
	for i := len(order) - 1; i >= 0; i-- {
		ts := result.Tasks[order[i]]
		longest := 0.0
		for _, dep := range g.Dependents(ts.TaskID) {
			if lf := result.Tasks[dep].LongestFrom; lf > longest {
				longest = lf
			}
		}
		ts.LongestFrom = ts.Duration + longest
		ts.LS = result.PathLength - ts.LongestFrom
		ts.LF = ts.LS + ts.Duration
		ts.Slack = ts.LS - ts.ES
		if math.Abs(ts.Slack) < epsilon {
			ts.Slack = 0
			ts.IsCritical = true
		}
	}

	for _, id := range g.IDs() {
		if result.Tasks[id].IsCritical {
			result.CriticalTaskIDs = append(result.CriticalTaskIDs, id)
		}
	}

	result.CriticalPath = criticalPath(g, result)
	result.Waves = computeWaves(result)

	return result, nil
}

// criticalPath backtracks one maximal path: start from the smallest-id root
// whose chain reaches PathLength, then repeatedly follow the dependent whose
// chain achieved the maximum.
func criticalPath(g *graph.Graph, result *Result) []string {
	var path []string
	for _, root := range g.Roots() {
		if math.Abs(result.Tasks[root].LongestFrom-result.PathLength) < epsilon {
			path = append(path, root)
			break
		}
	}
	if len(path) == 0 {
		return []string{}
	}

	for cur := path[0]; ; {
		ts := result.Tasks[cur]
		next := ""
		for _, dep := range g.Dependents(cur) {
			if math.Abs(ts.Duration+result.Tasks[dep].LongestFrom-ts.LongestFrom) < epsilon {
				next = dep // dependents are sorted, so the first match is the smallest id
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		cur = next
	}
}

// computeWaves groups tasks by their earliest start time.
func computeWaves(result *Result) []Wave {
	groups := make(map[float64][]string)
	for _, id := range result.TopoOrder {
		es := roundStart(result.Tasks[id].ES)
		groups[es] = append(groups[es], id)
	}

	starts := make([]float64, 0, len(groups))
	for es := range groups {
		starts = append(starts, es)
	}
	sort.Float64s(starts)

	waves := make([]Wave, len(starts))
	for i, es := range starts {
		ids := groups[es]
		sort.Strings(ids)

		hasCritical := false
		for _, id := range ids {
			result.Tasks[id].Wave = i
			if result.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		// Critical tasks first within a wave.
		sort.SliceStable(ids, func(a, b int) bool {
			return result.Tasks[ids[a]].IsCritical && !result.Tasks[ids[b]].IsCritical
		})

		waves[i] = Wave{Index: i, Start: es, TaskIDs: ids, IsCritical: hasCritical}
	}
	return waves
}

// roundStart keeps starts that differ only by float noise in one wave.
func roundStart(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
