package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// mockSource serves a mutable in-memory snapshot.
type mockSource struct {
	mu   sync.Mutex
	snap *model.Snapshot
	fail bool
}

func newMockSource(snap *model.Snapshot) *mockSource {
	return &mockSource{snap: snap}
}

func (m *mockSource) Snapshot(_ context.Context, projectID string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("database unavailable")
	}
	out := &model.Snapshot{ProjectID: projectID, TakenAt: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	for _, t := range m.snap.Tasks {
		if projectID == "" || t.ProjectID == projectID {
			cp := *t
			out.Tasks = append(out.Tasks, &cp)
		}
	}
	out.Dependencies = append(out.Dependencies, m.snap.Dependencies...)
	out.Assignees = append(out.Assignees, m.snap.Assignees...)
	return out, nil
}

func (m *mockSource) setTitle(id, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.snap.Tasks {
		if t.ID == id {
			t.Title = title
		}
	}
}

func task(id, assignee string, hours float64) *model.Task {
	return &model.Task{
		ID: id, ProjectID: "web", Title: "Task " + id,
		Status: model.StatusTodo, Priority: model.PriorityMedium,
		Assignee: assignee, EstimatedHours: model.Float64(hours),
	}
}

// scenario is A(4) -> C(3) -> D(5), B(6) -> D with two assignees.
func scenario() *model.Snapshot {
	return &model.Snapshot{
		Tasks: []*model.Task{
			task("D", "Y", 5), task("B", "X", 6), task("A", "X", 4), task("C", "", 3),
		},
		Dependencies: []*model.Dependency{
			{PrerequisiteID: "C", DependentID: "D"},
			{PrerequisiteID: "A", DependentID: "C"},
			{PrerequisiteID: "B", DependentID: "D"},
		},
		Assignees: []*model.Assignee{
			{ID: "Y", Name: "Yu", Role: "senior"},
			{ID: "X", Name: "Xi", Role: "developer"},
		},
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Options{}, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e
}
