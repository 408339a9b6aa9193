package server

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
	"github.com/alfredjeanlab/taskgraph/internal/store"
)

// importResult summarizes a bulk import.
type importResult struct {
	Tasks        int `json:"tasks"`
	Dependencies int `json:"dependencies"`
	Assignees    int `json:"assignees"`
}

// importSnapshot loads a batch of tasks, assignees and edges in one
// transaction. Unlike addDependency, which checks edges one at a time, the
// batch is gated by a full cycle search over existing plus incoming data: a
// cyclic batch is rejected whole with a *graph.CyclicGraphError naming the
// tasks on the cycles.
func (s *TaskGraphServer) importSnapshot(ctx context.Context, in *model.Snapshot, actor string) (*importResult, error) {
	now := time.Now().UTC()
	for _, t := range in.Tasks {
		if t.Status == "" {
			t.Status = model.StatusTodo
		}
		if t.Priority == "" {
			t.Priority = model.PriorityMedium
		}
		if t.ProjectID == "" {
			t.ProjectID = in.ProjectID
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		if err := model.ValidateTask(t); err != nil {
			return nil, inputError(fmt.Sprintf("invalid task %q: %v", t.ID, err))
		}
	}
	for _, a := range in.Assignees {
		if err := model.ValidateAssignee(a); err != nil {
			return nil, inputError(fmt.Sprintf("invalid assignee %q: %v", a.ID, err))
		}
	}
	for _, d := range in.Dependencies {
		d.Kind = d.Kind.OrDefault()
		if d.CreatedBy == "" {
			d.CreatedBy = actor
		}
		if err := model.ValidateDependency(d); err != nil {
			return nil, inputError(fmt.Sprintf("invalid dependency %s -> %s: %v", d.PrerequisiteID, d.DependentID, err))
		}
	}

	res := &importResult{}
	var added []*model.Dependency
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		existing, err := tx.Snapshot(ctx, "")
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}
		known := existing.TaskIndex()
		for _, t := range in.Tasks {
			if known[t.ID] != nil {
				return inputError("task " + t.ID + " already exists")
			}
		}
		merged := &model.Snapshot{
			Tasks:        append(append([]*model.Task{}, existing.Tasks...), in.Tasks...),
			Dependencies: append(append([]*model.Dependency{}, existing.Dependencies...), in.Dependencies...),
		}
		g, err := graph.Build(merged.Tasks, merged.Dependencies)
		if err != nil {
			return err
		}
		if cycles := graph.DetectCycles(g); len(cycles) > 0 {
			return &graph.CyclicGraphError{Unresolved: cycleMembers(cycles)}
		}

		for _, t := range in.Tasks {
			if err := tx.CreateTask(ctx, t); err != nil {
				return fmt.Errorf("creating task %q: %w", t.ID, err)
			}
			res.Tasks++
		}
		for _, a := range in.Assignees {
			if err := tx.UpsertAssignee(ctx, a); err != nil {
				return fmt.Errorf("saving assignee %q: %w", a.ID, err)
			}
			res.Assignees++
		}
		for _, d := range in.Dependencies {
			created, err := tx.AddDependency(ctx, d)
			if err != nil {
				return fmt.Errorf("adding dependency %s -> %s: %w", d.PrerequisiteID, d.DependentID, err)
			}
			if created {
				res.Dependencies++
				added = append(added, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range in.Tasks {
		s.recordAndPublish(ctx, events.TopicTaskCreated, t.ID, actor, events.TaskCreated{Task: t})
	}
	for _, a := range in.Assignees {
		s.recordAndPublish(ctx, events.TopicAssigneeUpdated, "", actor, events.AssigneeUpdated{Assignee: a})
	}
	for _, d := range added {
		s.recordAndPublish(ctx, events.TopicDependencyAdded, d.DependentID, actor, events.DependencyAdded{Dependency: d})
	}
	s.logger.Info("snapshot imported", "tasks", res.Tasks, "dependencies", res.Dependencies, "assignees", res.Assignees)
	return res, nil
}

// cycleMembers flattens cycles into their distinct task ids, in order of
// first appearance.
func cycleMembers(cycles [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cycles {
		for _, id := range c {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
