// Package engine is the facade over the scheduling algorithms. Every
// operation takes a model.Snapshot and returns freshly computed plain data;
// the engine never mutates tasks or dependencies.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/cpm"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

// DefaultCacheSize is the number of reports kept when Options.CacheSize is 0.
const DefaultCacheSize = 128

// Options configures an Engine.
type Options struct {
	Workload  workload.Options
	Assign    assign.Options
	CacheSize int

	// Now overrides the clock used for overdue counts when a snapshot has
	// no TakenAt. Tests set it; nil means time.Now.
	Now func() time.Time
}

// Engine runs analyses over snapshots. It is safe for concurrent use: the
// algorithms share no state and the report cache is synchronized.
type Engine struct {
	opts   Options
	cache  *lru.Cache[string, *Report]
	logger *slog.Logger
}

// New creates an Engine.
func New(opts Options, logger *slog.Logger) (*Engine, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.Workload = opts.Workload.WithDefaults()
	opts.Assign.Workload = opts.Workload

	cache, err := lru.New[string, *Report](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating report cache: %w", err)
	}
	return &Engine{opts: opts, cache: cache, logger: logger}, nil
}

// BuildGraph builds the dependency graph of the snapshot.
func (e *Engine) BuildGraph(snap *model.Snapshot) (*graph.Graph, error) {
	return graph.Build(snap.Tasks, snap.Dependencies)
}

// DetectCycles returns the cycles found in the snapshot's graph, or nil.
func (e *Engine) DetectCycles(snap *model.Snapshot) ([][]string, error) {
	g, err := e.BuildGraph(snap)
	if err != nil {
		return nil, err
	}
	return graph.DetectCycles(g), nil
}

// WouldCreateCycle reports whether adding prerequisiteID -> dependentID to
// the snapshot's edges would close a cycle.
func (e *Engine) WouldCreateCycle(snap *model.Snapshot, prerequisiteID, dependentID string) (bool, error) {
	g, err := e.BuildGraph(snap)
	if err != nil {
		return false, err
	}
	return graph.WouldCreateCycle(g, prerequisiteID, dependentID), nil
}

// CheckEdge validates a proposed dependency against the snapshot. See
// graph.CheckEdge for the returned errors.
func (e *Engine) CheckEdge(snap *model.Snapshot, dep *model.Dependency) error {
	// A self-edge fails validation too; report it as the cycle it is.
	selfEdge := dep.PrerequisiteID != "" && dep.PrerequisiteID == dep.DependentID
	if err := model.ValidateDependency(dep); err != nil && !selfEdge {
		return err
	}
	g, err := e.BuildGraph(snap)
	if err != nil {
		return err
	}
	return graph.CheckEdge(g, dep)
}

// AssignLevels returns the topological level of every task.
func (e *Engine) AssignLevels(snap *model.Snapshot) (map[string]int, error) {
	g, err := e.BuildGraph(snap)
	if err != nil {
		return nil, err
	}
	return graph.AssignLevels(g)
}

// AnalyzeCriticalPath runs the critical path analysis using task estimates
// as durations.
func (e *Engine) AnalyzeCriticalPath(snap *model.Snapshot) (*cpm.Result, error) {
	g, err := e.BuildGraph(snap)
	if err != nil {
		return nil, err
	}
	return cpm.Analyze(g, cpm.Durations(snap.Tasks))
}

// AnalyzeWorkload returns one workload record per assignee.
func (e *Engine) AnalyzeWorkload(snap *model.Snapshot) []workload.Record {
	return workload.Analyze(snap.Tasks, snap.Assignees, e.workloadOptions(snap))
}

// RecommendAssignments ranks assignees for each unassigned open task. When
// the graph is acyclic, candidates for critical tasks say so in their
// reasons.
func (e *Engine) RecommendAssignments(snap *model.Snapshot) (map[string][]assign.Candidate, error) {
	g, err := e.BuildGraph(snap)
	if err != nil {
		return nil, err
	}
	records := e.AnalyzeWorkload(snap)
	return assign.Recommend(snap.Tasks, snap.Assignees, records, e.assignOptions(snap, g)), nil
}

// OptimizeAssignments proposes reassignment moves that improve team
// balance.
func (e *Engine) OptimizeAssignments(snap *model.Snapshot) *assign.Plan {
	records := e.AnalyzeWorkload(snap)
	return assign.Optimize(snap.Tasks, snap.Assignees, records, e.assignOptions(snap, nil))
}

func (e *Engine) workloadOptions(snap *model.Snapshot) workload.Options {
	opts := e.opts.Workload
	if opts.Now.IsZero() {
		opts.Now = e.now(snap)
	}
	return opts
}

func (e *Engine) assignOptions(snap *model.Snapshot, g *graph.Graph) assign.Options {
	opts := e.opts.Assign
	opts.Workload = e.workloadOptions(snap)
	if g != nil {
		if res, err := cpm.Analyze(g, cpm.Durations(snap.Tasks)); err == nil {
			opts.Critical = res.CriticalSet()
		}
	}
	return opts
}

func (e *Engine) now(snap *model.Snapshot) time.Time {
	if !snap.TakenAt.IsZero() {
		return snap.TakenAt
	}
	return e.opts.Now()
}
