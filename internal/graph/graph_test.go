package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

func tasks(ids ...string) []*model.Task {
	out := make([]*model.Task, len(ids))
	for i, id := range ids {
		out[i] = &model.Task{ID: id, Title: id, Status: model.StatusTodo, Priority: model.PriorityMedium}
	}
	return out
}

func edge(prereq, dependent string) *model.Dependency {
	return &model.Dependency{PrerequisiteID: prereq, DependentID: dependent}
}

func mustBuild(t *testing.T, ts []*model.Task, edges ...*model.Dependency) *Graph {
	t.Helper()
	g, err := Build(ts, edges)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestBuild_Adjacency(t *testing.T) {
	g := mustBuild(t, tasks("a", "b", "c", "d"),
		edge("a", "c"), edge("b", "d"), edge("c", "d"))

	if g.Len() != 4 {
		t.Errorf("Len = %d, want 4", g.Len())
	}
	if got := g.Prerequisites("d"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Prerequisites(d) = %v", got)
	}
	if got := g.Dependents("a"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Dependents(a) = %v", got)
	}
	if got := g.Roots(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Roots = %v", got)
	}
	if got := g.Leaves(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("Leaves = %v", got)
	}
}

func TestBuild_InvalidReference(t *testing.T) {
	_, err := Build(tasks("a"), []*model.Dependency{edge("a", "ghost")})
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	var ref *InvalidReferenceError
	if !errors.As(err, &ref) || ref.TaskID != "ghost" {
		t.Errorf("expected reference to ghost, got %+v", ref)
	}
}

func TestBuild_DuplicateEdgesCollapse(t *testing.T) {
	g := mustBuild(t, tasks("a", "b"),
		edge("a", "b"),
		edge("a", "b"),
		&model.Dependency{PrerequisiteID: "a", DependentID: "b", Kind: model.KindFinishToStart},
		&model.Dependency{PrerequisiteID: "a", DependentID: "b", Kind: model.KindStartToStart},
	)
	if len(g.Edges()) != 2 {
		t.Errorf("Edges = %d, want 2 (one per kind)", len(g.Edges()))
	}
	if got := g.Dependents("a"); len(got) != 1 {
		t.Errorf("Dependents(a) = %v, want one adjacency link", got)
	}
	if !g.HasEdge(model.EdgeKey{PrerequisiteID: "a", DependentID: "b"}) {
		t.Error("HasEdge with empty kind should match finish_to_start")
	}
}

func TestGraph_Blocked(t *testing.T) {
	ts := tasks("a", "b", "c")
	ts[0].Status = model.StatusDone
	g := mustBuild(t, ts, edge("a", "c"), edge("b", "c"))

	if !g.Blocked("c") {
		t.Error("c has an incomplete prerequisite and should be blocked")
	}
	if g.Blocked("a") {
		t.Error("root a should not be blocked")
	}

	ts[1].Status = model.StatusDone
	if g.Blocked("c") {
		t.Error("c should be unblocked once all prerequisites are done")
	}
}

func TestGraph_Nodes(t *testing.T) {
	g := mustBuild(t, tasks("a", "b"), edge("a", "b"))
	levels, err := AssignLevels(g)
	if err != nil {
		t.Fatal(err)
	}
	nodes := g.Nodes(levels, map[string]bool{"b": true})
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes", len(nodes))
	}
	if nodes[0].TaskID != "a" || nodes[0].Level != 0 || nodes[0].Dependents[0] != "b" {
		t.Errorf("node a = %+v", nodes[0])
	}
	if nodes[1].TaskID != "b" || nodes[1].Level != 1 || !nodes[1].Critical || !nodes[1].Blocked {
		t.Errorf("node b = %+v", nodes[1])
	}
	if nodes[0].Prerequisites == nil {
		t.Error("empty adjacency should be a non-nil slice")
	}
}

func TestDetectCycles(t *testing.T) {
	for _, tc := range []struct {
		name  string
		edges []*model.Dependency
		want  [][]string
	}{
		{"Acyclic", []*model.Dependency{edge("a", "b"), edge("b", "c")}, nil},
		{"SelfLoop", []*model.Dependency{edge("a", "a")}, [][]string{{"a"}}},
		{"Triangle", []*model.Dependency{edge("a", "b"), edge("b", "c"), edge("c", "a")}, [][]string{{"a", "b", "c"}}},
		{"TwoRegions", []*model.Dependency{edge("a", "b"), edge("b", "a"), edge("c", "d"), edge("d", "c")},
			[][]string{{"a", "b"}, {"c", "d"}}},
		{"TailIntoCycle", []*model.Dependency{edge("a", "b"), edge("b", "c"), edge("c", "b")}, [][]string{{"b", "c"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := mustBuild(t, tasks("a", "b", "c", "d"), tc.edges...)
			got := DetectCycles(g)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("DetectCycles = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWouldCreateCycle(t *testing.T) {
	// A -> C -> D, B -> D
	g := mustBuild(t, tasks("A", "B", "C", "D"), edge("A", "C"), edge("C", "D"), edge("B", "D"))

	for _, tc := range []struct {
		prereq, dependent string
		want              bool
	}{
		{"D", "A", true}, // closes A -> C -> D -> A
		{"C", "A", true},
		{"A", "A", true},
		{"A", "D", false}, // redundant but acyclic
		{"A", "B", false},
		{"B", "A", false},
	} {
		if got := WouldCreateCycle(g, tc.prereq, tc.dependent); got != tc.want {
			t.Errorf("WouldCreateCycle(%s -> %s) = %v, want %v", tc.prereq, tc.dependent, got, tc.want)
		}
	}
}

func TestCheckEdge(t *testing.T) {
	g := mustBuild(t, tasks("A", "C", "D"), edge("A", "C"), edge("C", "D"))

	err := CheckEdge(g, edge("D", "A"))
	if !errors.Is(err, ErrCyclicEdgeRejected) {
		t.Fatalf("expected ErrCyclicEdgeRejected, got %v", err)
	}
	var ce *CyclicEdgeError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CyclicEdgeError, got %T", err)
	}
	if want := []string{"D", "A", "C", "D"}; !reflect.DeepEqual(ce.Cycle, want) {
		t.Errorf("Cycle = %v, want %v", ce.Cycle, want)
	}

	if err := CheckEdge(g, edge("A", "C")); err != nil {
		t.Errorf("duplicate edge should be accepted, got %v", err)
	}
	if err := CheckEdge(g, edge("A", "D")); err != nil {
		t.Errorf("acyclic edge should be accepted, got %v", err)
	}
	if err := CheckEdge(g, edge("A", "Z")); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference, got %v", err)
	}
	if err := CheckEdge(g, edge("C", "C")); !errors.Is(err, ErrCyclicEdgeRejected) {
		t.Errorf("self edge: expected ErrCyclicEdgeRejected, got %v", err)
	}
}

func TestAssignLevels(t *testing.T) {
	// a -> b -> d, a -> d, c isolated, d -> e
	g := mustBuild(t, tasks("a", "b", "c", "d", "e"),
		edge("a", "b"), edge("b", "d"), edge("a", "d"), edge("d", "e"))

	levels, err := AssignLevels(g)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{"a": 0, "b": 1, "c": 0, "d": 2, "e": 3}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}

	layers := Layers(levels)
	if !reflect.DeepEqual(layers, [][]string{{"a", "c"}, {"b"}, {"d"}, {"e"}}) {
		t.Errorf("Layers = %v", layers)
	}
}

func TestAssignLevels_UnestimatedTaskParticipates(t *testing.T) {
	ts := tasks("a", "b", "c")
	ts[0].EstimatedHours = model.Float64(2)
	ts[2].EstimatedHours = model.Float64(3)
	g := mustBuild(t, ts, edge("a", "b"), edge("b", "c"))

	levels, err := AssignLevels(g)
	if err != nil {
		t.Fatal(err)
	}
	if levels["b"] != 1 || levels["c"] != 2 {
		t.Errorf("levels = %v", levels)
	}
}

func TestAssignLevels_Cyclic(t *testing.T) {
	g := mustBuild(t, tasks("a", "b", "c"), edge("a", "b"), edge("b", "c"), edge("c", "b"))
	_, err := AssignLevels(g)
	if !errors.Is(err, ErrCyclicGraph) {
		t.Fatalf("expected ErrCyclicGraph, got %v", err)
	}
	var cg *CyclicGraphError
	if !errors.As(err, &cg) || !reflect.DeepEqual(cg.Unresolved, []string{"b", "c"}) {
		t.Errorf("Unresolved = %+v", cg)
	}
}

func TestTopoOrder_Deterministic(t *testing.T) {
	g := mustBuild(t, tasks("d", "c", "b", "a"), edge("a", "d"), edge("b", "d"))
	order, err := TopoOrder(g)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b", "c", "d"}) {
		t.Errorf("TopoOrder = %v", order)
	}
}

// randomAcceptedGraph proposes random edges and keeps only those
// WouldCreateCycle accepts.
func randomAcceptedGraph(t *testing.T, seed int64, n, proposals int) *Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%02d", i)
	}
	ts := tasks(ids...)

	var accepted []*model.Dependency
	for i := 0; i < proposals; i++ {
		u, v := ids[rng.Intn(n)], ids[rng.Intn(n)]
		g := mustBuild(t, ts, accepted...)
		if !WouldCreateCycle(g, u, v) {
			accepted = append(accepted, edge(u, v))
		}
	}
	return mustBuild(t, ts, accepted...)
}

func TestProperty_AcceptedEdgesStayAcyclic(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g := randomAcceptedGraph(t, seed, 12, 60)
		if cycles := DetectCycles(g); len(cycles) != 0 {
			t.Fatalf("seed %d: accepted edges formed cycles %v", seed, cycles)
		}
	}
}

func TestProperty_ReachableEdgeWouldCycle(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g := randomAcceptedGraph(t, seed, 10, 40)
		for _, u := range g.IDs() {
			for _, v := range g.IDs() {
				if u == v {
					continue
				}
				// v reachable from u means v -> u would close a cycle.
				if pathBetween(g, u, v) != nil && !WouldCreateCycle(g, v, u) {
					t.Fatalf("seed %d: %s reaches %s but edge %s -> %s was not rejected", seed, u, v, v, u)
				}
				if pathBetween(g, u, v) == nil && pathBetween(g, v, u) == nil && WouldCreateCycle(g, u, v) {
					t.Fatalf("seed %d: unrelated %s, %s reported as cyclic", seed, u, v)
				}
			}
		}
	}
}

func TestProperty_LevelMonotonicity(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		g := randomAcceptedGraph(t, seed, 15, 80)
		levels, err := AssignLevels(g)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for _, e := range g.Edges() {
			if levels[e.DependentID] < levels[e.PrerequisiteID]+1 {
				t.Fatalf("seed %d: edge %s -> %s has levels %d -> %d",
					seed, e.PrerequisiteID, e.DependentID, levels[e.PrerequisiteID], levels[e.DependentID])
			}
		}
	}
}
