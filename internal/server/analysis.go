package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/cpm"
	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

// graphView is the node listing served by /v1/graph.
type graphView struct {
	ProjectID string              `json:"project_id,omitempty"`
	Acyclic   bool                `json:"acyclic"`
	Nodes     []graph.Node        `json:"nodes"`
	Edges     []*model.Dependency `json:"edges"`
}

type cyclesView struct {
	Acyclic bool       `json:"acyclic"`
	Cycles  [][]string `json:"cycles"`
}

type levelsView struct {
	Levels map[string]int `json:"levels"`
	Layers [][]string     `json:"layers"`
}

type workloadView struct {
	Workload    []workload.Record `json:"workload"`
	TeamBalance float64           `json:"team_balance"`
}

type recommendationsView struct {
	Recommendations map[string][]assign.Candidate `json:"recommendations"`
}

// edgeCheck answers whether a proposed edge may be added.
type edgeCheck struct {
	PrerequisiteID   string   `json:"prerequisite_id"`
	DependentID      string   `json:"dependent_id"`
	WouldCreateCycle bool     `json:"would_create_cycle"`
	Cycle            []string `json:"cycle,omitempty"`
}

func (s *TaskGraphServer) snapshot(ctx context.Context, projectID string) (*model.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snap, nil
}

func (s *TaskGraphServer) report(ctx context.Context, projectID string) (*engine.Report, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.engine.Report(snap)
}

func (s *TaskGraphServer) graphView(ctx context.Context, projectID string) (*graphView, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	r, err := s.engine.Report(snap)
	if err != nil {
		return nil, err
	}
	edges := snap.Dependencies
	if edges == nil {
		edges = []*model.Dependency{}
	}
	return &graphView{ProjectID: projectID, Acyclic: r.Acyclic, Nodes: r.Nodes, Edges: edges}, nil
}

func (s *TaskGraphServer) cycles(ctx context.Context, projectID string) (*cyclesView, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cycles, err := s.engine.DetectCycles(snap)
	if err != nil {
		return nil, err
	}
	if cycles == nil {
		cycles = [][]string{}
	}
	return &cyclesView{Acyclic: len(cycles) == 0, Cycles: cycles}, nil
}

func (s *TaskGraphServer) levels(ctx context.Context, projectID string) (*levelsView, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	levels, err := s.engine.AssignLevels(snap)
	if err != nil {
		return nil, err
	}
	return &levelsView{Levels: levels, Layers: graph.Layers(levels)}, nil
}

func (s *TaskGraphServer) criticalPath(ctx context.Context, projectID string) (*cpm.Result, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.engine.AnalyzeCriticalPath(snap)
}

func (s *TaskGraphServer) workload(ctx context.Context, projectID string) (*workloadView, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	records := s.engine.AnalyzeWorkload(snap)
	return &workloadView{Workload: records, TeamBalance: workload.TeamBalance(records)}, nil
}

func (s *TaskGraphServer) recommendations(ctx context.Context, projectID string) (*recommendationsView, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	recs, err := s.engine.RecommendAssignments(snap)
	if err != nil {
		return nil, err
	}
	return &recommendationsView{Recommendations: recs}, nil
}

func (s *TaskGraphServer) optimizations(ctx context.Context, projectID string) (*assign.Plan, error) {
	snap, err := s.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.engine.OptimizeAssignments(snap), nil
}

// checkEdge reports whether adding the edge would close a cycle without
// adding it. Unknown endpoints return the InvalidReference error.
func (s *TaskGraphServer) checkEdge(ctx context.Context, in addDependencyInput) (*edgeCheck, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	dep := &model.Dependency{
		PrerequisiteID: in.PrerequisiteID,
		DependentID:    in.DependentID,
		Kind:           model.DependencyKind(in.Kind).OrDefault(),
	}
	snap, err := s.snapshot(ctx, "")
	if err != nil {
		return nil, err
	}

	out := &edgeCheck{PrerequisiteID: dep.PrerequisiteID, DependentID: dep.DependentID}
	err = s.engine.CheckEdge(snap, dep)
	var cyclic *graph.CyclicEdgeError
	switch {
	case errors.As(err, &cyclic):
		out.WouldCreateCycle = true
		out.Cycle = cyclic.Cycle
	case err != nil:
		return nil, err
	}
	return out, nil
}
