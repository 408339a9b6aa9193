// Package graph holds the immutable task dependency graph and the algorithms
// that validate and order it: cycle detection, edge admission and level
// assignment.
//
// Edges point from prerequisite to dependent. A Graph is built once per
// snapshot and never mutated afterwards, so it is safe for concurrent reads.
package graph

import (
	"sort"

	"github.com/alfredjeanlab/taskgraph/internal/model"
)

// Graph is an immutable snapshot of tasks and dependency edges with
// precomputed adjacency in both directions.
type Graph struct {
	tasks         map[string]*model.Task
	ids           []string            // sorted
	dependents    map[string][]string // prerequisite -> dependents, sorted
	prerequisites map[string][]string // dependent -> prerequisites, sorted
	edges         []*model.Dependency // deduplicated, in input order
	edgeSet       map[model.EdgeKey]struct{}
}

// Node is the derived, per-task view of the graph used for layout.
type Node struct {
	TaskID        string   `json:"task_id"`
	Prerequisites []string `json:"prerequisites"`
	Dependents    []string `json:"dependents"`
	Level         int      `json:"level"`
	Critical      bool     `json:"critical"`
	Blocked       bool     `json:"blocked"`
}

// Build constructs a Graph from tasks and dependency edges in O(T+E).
// It fails with an *InvalidReferenceError when an edge names a task id that
// is not in tasks. Edges with an identical (prerequisite, dependent, kind)
// triple collapse into one. Duplicate task ids keep the first occurrence.
func Build(tasks []*model.Task, edges []*model.Dependency) (*Graph, error) {
	g := &Graph{
		tasks:         make(map[string]*model.Task, len(tasks)),
		ids:           make([]string, 0, len(tasks)),
		dependents:    make(map[string][]string),
		prerequisites: make(map[string][]string),
		edgeSet:       make(map[model.EdgeKey]struct{}, len(edges)),
	}

	for _, t := range tasks {
		if _, dup := g.tasks[t.ID]; dup {
			continue
		}
		g.tasks[t.ID] = t
		g.ids = append(g.ids, t.ID)
	}
	sort.Strings(g.ids)

	// Several kinds between the same ordered pair are one adjacency link.
	linked := make(map[[2]string]bool, len(edges))
	for _, e := range edges {
		key := e.Key()
		if _, ok := g.tasks[key.PrerequisiteID]; !ok {
			return nil, &InvalidReferenceError{Edge: key, TaskID: key.PrerequisiteID}
		}
		if _, ok := g.tasks[key.DependentID]; !ok {
			return nil, &InvalidReferenceError{Edge: key, TaskID: key.DependentID}
		}
		if _, dup := g.edgeSet[key]; dup {
			continue
		}
		g.edgeSet[key] = struct{}{}
		g.edges = append(g.edges, e)

		pair := [2]string{key.PrerequisiteID, key.DependentID}
		if linked[pair] {
			continue
		}
		linked[pair] = true
		g.dependents[key.PrerequisiteID] = append(g.dependents[key.PrerequisiteID], key.DependentID)
		g.prerequisites[key.DependentID] = append(g.prerequisites[key.DependentID], key.PrerequisiteID)
	}

	// Sort adjacency lists for deterministic traversal.
	for k := range g.dependents {
		sort.Strings(g.dependents[k])
	}
	for k := range g.prerequisites {
		sort.Strings(g.prerequisites[k])
	}

	return g, nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.ids)
}

// IDs returns all task ids in sorted order. The slice must not be modified.
func (g *Graph) IDs() []string {
	return g.ids
}

// Has reports whether the graph contains the task.
func (g *Graph) Has(id string) bool {
	_, ok := g.tasks[id]
	return ok
}

// Task returns the task with the given id, or nil.
func (g *Graph) Task(id string) *model.Task {
	return g.tasks[id]
}

// Prerequisites returns the direct prerequisites of id, sorted.
// The slice must not be modified.
func (g *Graph) Prerequisites(id string) []string {
	return g.prerequisites[id]
}

// Dependents returns the direct dependents of id, sorted.
// The slice must not be modified.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Edges returns the deduplicated dependency edges.
func (g *Graph) Edges() []*model.Dependency {
	return g.edges
}

// HasEdge reports whether the exact (prerequisite, dependent, kind) edge exists.
func (g *Graph) HasEdge(key model.EdgeKey) bool {
	key.Kind = key.Kind.OrDefault()
	_, ok := g.edgeSet[key]
	return ok
}

// Roots returns the tasks without prerequisites, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.ids {
		if len(g.prerequisites[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns the tasks without dependents, sorted.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.ids {
		if len(g.dependents[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Blocked reports whether any direct prerequisite of id is incomplete.
func (g *Graph) Blocked(id string) bool {
	for _, p := range g.prerequisites[id] {
		if !g.tasks[p].IsCompleted() {
			return true
		}
	}
	return false
}

// Nodes returns the derived node view for every task, sorted by level and
// then id. levels and critical may be nil.
func (g *Graph) Nodes(levels map[string]int, critical map[string]bool) []Node {
	nodes := make([]Node, 0, len(g.ids))
	for _, id := range g.ids {
		nodes = append(nodes, Node{
			TaskID:        id,
			Prerequisites: nonNil(g.prerequisites[id]),
			Dependents:    nonNil(g.dependents[id]),
			Level:         levels[id],
			Critical:      critical[id],
			Blocked:       g.Blocked(id),
		})
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Level < nodes[j].Level
	})
	return nodes
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
