package engine

import (
	"errors"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/cpm"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

// Report bundles every analysis of one snapshot.
//
// On a cyclic graph Acyclic is false, Cycles lists what was found, and the
// DAG-only analyses (Levels, CriticalPath) are nil. Workload analyses do not
// depend on the graph and are always filled in.
type Report struct {
	ProjectID       string                        `json:"project_id,omitempty"`
	Fingerprint     string                        `json:"fingerprint"`
	GeneratedAt     time.Time                     `json:"generated_at"`
	TaskCount       int                           `json:"task_count"`
	EdgeCount       int                           `json:"edge_count"`
	Acyclic         bool                          `json:"acyclic"`
	Cycles          [][]string                    `json:"cycles"`
	Nodes           []graph.Node                  `json:"nodes"`
	Levels          map[string]int                `json:"levels"`
	CriticalPath    *cpm.Result                   `json:"critical_path"`
	Workload        []workload.Record             `json:"workload"`
	TeamBalance     float64                       `json:"team_balance"`
	Recommendations map[string][]assign.Candidate `json:"recommendations"`
	Optimization    *assign.Plan                  `json:"optimization"`
}

// Report computes every analysis of snap, or returns the cached report for
// an identical snapshot. Reports are derived data: the cache may drop them
// at any time. The only error is an invalid reference in the edges.
func (e *Engine) Report(snap *model.Snapshot) (*Report, error) {
	now := e.now(snap)
	// Overdue counts depend on the clock, so reports expire hourly.
	key := snap.ProjectID + "|" + snap.Fingerprint() + "|" + now.UTC().Truncate(time.Hour).Format(time.RFC3339)
	if r, ok := e.cache.Get(key); ok {
		e.logger.Debug("report cache hit", "project", snap.ProjectID)
		return r, nil
	}

	start := time.Now()
	r, err := e.buildReport(snap, now)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, r)
	e.logger.Debug("report computed",
		"project", snap.ProjectID,
		"tasks", r.TaskCount,
		"edges", r.EdgeCount,
		"acyclic", r.Acyclic,
		"duration", time.Since(start))
	return r, nil
}

// Purge drops every cached report.
func (e *Engine) Purge() {
	e.cache.Purge()
}

func (e *Engine) buildReport(snap *model.Snapshot, now time.Time) (*Report, error) {
	g, err := e.BuildGraph(snap)
	if err != nil {
		return nil, err
	}

	r := &Report{
		ProjectID:   snap.ProjectID,
		Fingerprint: snap.Fingerprint(),
		GeneratedAt: now,
		TaskCount:   g.Len(),
		EdgeCount:   len(g.Edges()),
		Cycles:      graph.DetectCycles(g),
	}
	if r.Cycles == nil {
		r.Cycles = [][]string{}
	}
	r.Acyclic = len(r.Cycles) == 0

	var critical map[string]bool
	if r.Acyclic {
		levels, err := graph.AssignLevels(g)
		if err != nil {
			return nil, err
		}
		result, err := cpm.Analyze(g, cpm.Durations(snap.Tasks))
		if err != nil {
			return nil, err
		}
		r.Levels = levels
		r.CriticalPath = result
		critical = result.CriticalSet()
	}
	r.Nodes = g.Nodes(r.Levels, critical)

	wopts := e.opts.Workload
	if wopts.Now.IsZero() {
		wopts.Now = now
	}
	r.Workload = workload.Analyze(snap.Tasks, snap.Assignees, wopts)
	r.TeamBalance = workload.TeamBalance(r.Workload)

	aopts := e.opts.Assign
	aopts.Workload = wopts
	aopts.Critical = critical
	r.Recommendations = assign.Recommend(snap.Tasks, snap.Assignees, r.Workload, aopts)
	r.Optimization = assign.Optimize(snap.Tasks, snap.Assignees, r.Workload, aopts)

	return r, nil
}

// IsGraphError reports whether err comes from graph validation rather than
// I/O, i.e. whether it is the caller's input that needs fixing.
func IsGraphError(err error) bool {
	return errors.Is(err, graph.ErrInvalidReference) ||
		errors.Is(err, graph.ErrCyclicEdgeRejected) ||
		errors.Is(err, graph.ErrCyclicGraph)
}
