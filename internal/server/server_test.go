package server

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/graph"
	"github.com/alfredjeanlab/taskgraph/internal/model"
)

func newEdge(prerequisite, dependent string) *model.Dependency {
	return &model.Dependency{PrerequisiteID: prerequisite, DependentID: dependent}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want errorKind
	}{
		{inputError("bad"), kindInput},
		{&model.ValidationError{}, kindInput},
		{sql.ErrNoRows, kindNotFound},
		{fmt.Errorf("wrapped: %w", sql.ErrNoRows), kindNotFound},
		{&graph.CyclicEdgeError{PrerequisiteID: "a", DependentID: "b"}, kindCycle},
		{&graph.CyclicGraphError{Unresolved: []string{"a"}}, kindCycle},
		{&graph.InvalidReferenceError{TaskID: "x"}, kindReference},
		{errors.New("boom"), kindInternal},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAddDependency(t *testing.T) {
	srv, ms, pub := newTestServer()
	seedScenario(ms)

	dep, created, err := srv.addDependency(t.Context(), addDependencyInput{PrerequisiteID: "A", DependentID: "B", CreatedBy: "alice"})
	if err != nil || !created {
		t.Fatalf("new edge: created=%v err=%v", created, err)
	}
	if dep.Kind != model.KindFinishToStart {
		t.Errorf("kind = %q, want default %q", dep.Kind, model.KindFinishToStart)
	}

	_, created, err = srv.addDependency(t.Context(), addDependencyInput{PrerequisiteID: "A", DependentID: "C"})
	if err != nil || created {
		t.Fatalf("duplicate edge: created=%v err=%v", created, err)
	}

	_, _, err = srv.addDependency(t.Context(), addDependencyInput{PrerequisiteID: "D", DependentID: "A"})
	var cyclic *graph.CyclicEdgeError
	if !errors.As(err, &cyclic) {
		t.Fatalf("expected CyclicEdgeError, got %v", err)
	}
	if !errors.Is(err, graph.ErrCyclicEdgeRejected) {
		t.Error("rejection should match ErrCyclicEdgeRejected")
	}

	_, _, err = srv.addDependency(t.Context(), addDependencyInput{PrerequisiteID: "A", DependentID: "ghost"})
	if !errors.Is(err, graph.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	want := []string{events.TopicDependencyAdded, events.TopicDependencyRejected}
	if !reflect.DeepEqual(pub.topics, want) {
		t.Errorf("published = %v, want %v", pub.topics, want)
	}
	if len(ms.deps) != 4 {
		t.Errorf("edges = %d, want 4", len(ms.deps))
	}
}

func TestAddDependency_KeepsGraphAcyclic(t *testing.T) {
	srv, ms, _ := newTestServer()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_ = ms.CreateTask(t.Context(), &model.Task{ID: id, Title: id, Status: model.StatusTodo, Priority: model.PriorityLow})
	}
	// Try every ordered pair; whatever gets accepted must stay a DAG.
	ids := []string{"a", "b", "c", "d", "e"}
	for _, p := range ids {
		for _, d := range ids {
			_, _, _ = srv.addDependency(t.Context(), addDependencyInput{PrerequisiteID: p, DependentID: d})
		}
	}
	snap, _ := ms.Snapshot(t.Context(), "")
	cycles, err := srv.engine.DetectCycles(snap)
	if err != nil {
		t.Fatalf("DetectCycles: %v", err)
	}
	if len(cycles) != 0 {
		t.Fatalf("graph has cycles after gated inserts: %v", cycles)
	}
	// A complete order on five tasks has ten edges.
	if len(snap.Dependencies) != 10 {
		t.Errorf("edges = %d, want 10", len(snap.Dependencies))
	}
}

func TestRemoveDependency(t *testing.T) {
	srv, ms, pub := newTestServer()
	seedScenario(ms)

	if err := srv.removeDependency(t.Context(), "A", "C", ""); err != nil {
		t.Fatalf("removeDependency: %v", err)
	}
	if err := srv.removeDependency(t.Context(), "A", "C", ""); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second remove: expected ErrNoRows, got %v", err)
	}
	if err := srv.removeDependency(t.Context(), "B", "D", "bogus"); classify(err) != kindInput {
		t.Fatalf("bad kind: expected input error, got %v", err)
	}
	if !reflect.DeepEqual(pub.topics, []string{events.TopicDependencyRemoved}) {
		t.Errorf("published = %v", pub.topics)
	}
}

func TestUpdateTask_Clear(t *testing.T) {
	srv, ms, pub := newTestServer()
	seedScenario(ms)

	task, err := srv.updateTask(t.Context(), "A", updateTaskInput{Clear: []string{"assignee", "estimated_hours"}})
	if err != nil {
		t.Fatalf("updateTask: %v", err)
	}
	if task.Assignee != "" || task.EstimatedHours != nil {
		t.Errorf("fields not cleared: %+v", task)
	}

	if _, err := srv.updateTask(t.Context(), "A", updateTaskInput{Clear: []string{"title"}}); classify(err) != kindInput {
		t.Errorf("clearing title: expected input error, got %v", err)
	}
	if _, err := srv.updateTask(t.Context(), "missing", updateTaskInput{}); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing task: expected ErrNoRows, got %v", err)
	}

	// A no-op update publishes nothing.
	if _, err := srv.updateTask(t.Context(), "B", updateTaskInput{}); err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if !reflect.DeepEqual(pub.topics, []string{events.TopicTaskUpdated}) {
		t.Errorf("published = %v", pub.topics)
	}
}

func TestDeleteTask_DropsEdges(t *testing.T) {
	srv, ms, _ := newTestServer()
	seedScenario(ms)

	if err := srv.deleteTask(t.Context(), "C"); err != nil {
		t.Fatalf("deleteTask: %v", err)
	}
	deps, _ := ms.ListDependencies(t.Context(), "")
	if len(deps) != 1 || deps[0].PrerequisiteID != "B" {
		t.Errorf("remaining edges = %+v", deps)
	}
}

func TestImportSnapshot(t *testing.T) {
	srv, ms, _ := newTestServer()

	res, err := srv.importSnapshot(t.Context(), &model.Snapshot{
		ProjectID: "web",
		Tasks:     []*model.Task{{ID: "x", Title: "X"}, {ID: "y", Title: "Y"}},
		Dependencies: []*model.Dependency{
			newEdge("x", "y"),
			newEdge("x", "y"),
		},
	}, "importer")
	if err != nil {
		t.Fatalf("importSnapshot: %v", err)
	}
	if res.Tasks != 2 || res.Dependencies != 1 {
		t.Errorf("result = %+v", res)
	}
	task, _ := ms.GetTask(t.Context(), "x")
	if task.ProjectID != "web" || task.Status != model.StatusTodo {
		t.Errorf("defaults not applied: %+v", task)
	}

	_, err = srv.importSnapshot(t.Context(), &model.Snapshot{
		Tasks:        []*model.Task{{ID: "z", Title: "Z"}},
		Dependencies: []*model.Dependency{newEdge("y", "z"), newEdge("z", "x")},
	}, "")
	var cyclic *graph.CyclicGraphError
	if !errors.As(err, &cyclic) {
		t.Fatalf("expected CyclicGraphError, got %v", err)
	}
	if len(cyclic.Unresolved) != 3 {
		t.Errorf("unresolved = %v, want x, y and z", cyclic.Unresolved)
	}

	_, err = srv.importSnapshot(t.Context(), &model.Snapshot{
		Dependencies: []*model.Dependency{newEdge("x", "missing")},
	}, "")
	if !errors.Is(err, graph.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestImportSnapshot_PublishesCreatedEdgesOnly(t *testing.T) {
	srv, ms, pub := newTestServer()
	ctx := t.Context()
	_ = ms.CreateTask(ctx, &model.Task{ID: "a", Title: "A"})
	_ = ms.CreateTask(ctx, &model.Task{ID: "b", Title: "B"})
	_, _ = ms.AddDependency(ctx, newEdge("a", "b"))

	res, err := srv.importSnapshot(ctx, &model.Snapshot{
		Tasks:        []*model.Task{{ID: "c", Title: "C"}},
		Dependencies: []*model.Dependency{newEdge("a", "b"), newEdge("b", "c"), newEdge("b", "c")},
	}, "importer")
	if err != nil {
		t.Fatalf("importSnapshot: %v", err)
	}
	if res.Dependencies != 1 {
		t.Errorf("Dependencies = %d, want 1", res.Dependencies)
	}
	added := 0
	for _, topic := range pub.topics {
		if topic == events.TopicDependencyAdded {
			added++
		}
	}
	if added != 1 {
		t.Errorf("published %d dependency.added events, want 1: %v", added, pub.topics)
	}
}

func TestCycleMembers(t *testing.T) {
	got := cycleMembers([][]string{{"a", "b", "a"}, {"b", "c", "b"}})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("cycleMembers = %v, want %v", got, want)
	}
}

func TestToStructRoundTrip(t *testing.T) {
	in := edgeCheck{PrerequisiteID: "a", DependentID: "b", WouldCreateCycle: true, Cycle: []string{"a", "b", "a"}}
	s, err := toStruct(in)
	if err != nil {
		t.Fatalf("toStruct: %v", err)
	}
	if stringField(s, "prerequisite_id") != "a" || stringField(s, "missing") != "" {
		t.Errorf("stringField mismatch: %v", s)
	}
	var out edgeCheck
	if err := fromStruct(s, &out); err != nil {
		t.Fatalf("fromStruct: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	if _, err := toStruct([]string{"not", "an", "object"}); err == nil {
		t.Error("expected an error for a non-object value")
	}
}
