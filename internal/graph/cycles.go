package graph

import "github.com/alfredjeanlab/taskgraph/internal/model"

// DetectCycles scans the whole graph for cycles along dependent edges.
//
// A depth-first traversal starts from every task that no earlier traversal
// has fully explored. Each traversal keeps its own recursion stack; a
// back-edge to a task on that stack yields a cycle, reported as the suffix of
// the current path starting at the repeated task (the closing edge back to
// the first element is implied).
//
// Because explored tasks are never revisited, the result contains at least
// one cycle per strongly connected region containing a cycle. It does not
// enumerate every elementary cycle when cycles share sub-paths. An acyclic
// graph returns nil. Iteration order is sorted, so output is deterministic.
func DetectCycles(g *Graph) [][]string {
	explored := make(map[string]bool, g.Len())
	var cycles [][]string

	for _, root := range g.ids {
		if explored[root] {
			continue
		}

		onStack := make(map[string]int) // task -> index in path
		var path []string

		var visit func(id string)
		visit = func(id string) {
			onStack[id] = len(path)
			path = append(path, id)

			for _, next := range g.dependents[id] {
				if idx, ok := onStack[next]; ok {
					cycles = append(cycles, append([]string(nil), path[idx:]...))
					continue
				}
				if !explored[next] {
					visit(next)
				}
			}

			path = path[:len(path)-1]
			delete(onStack, id)
			explored[id] = true
		}
		visit(root)
	}

	return cycles
}

// WouldCreateCycle reports whether adding the edge prerequisiteID ->
// dependentID would close a cycle, i.e. whether prerequisiteID is already
// reachable from dependentID along dependent edges. A self-edge always
// closes a cycle. The visited set is scoped to this call.
func WouldCreateCycle(g *Graph, prerequisiteID, dependentID string) bool {
	if prerequisiteID == dependentID {
		return true
	}
	return pathBetween(g, dependentID, prerequisiteID) != nil
}

// CheckEdge decides whether the proposed dependency may be committed on top
// of g. It returns an *InvalidReferenceError when an endpoint is unknown, a
// *CyclicEdgeError when the edge would close a cycle, and nil otherwise.
// An edge that already exists is accepted: re-creating it is a no-op.
func CheckEdge(g *Graph, dep *model.Dependency) error {
	key := dep.Key()
	if !g.Has(key.PrerequisiteID) {
		return &InvalidReferenceError{Edge: key, TaskID: key.PrerequisiteID}
	}
	if !g.Has(key.DependentID) {
		return &InvalidReferenceError{Edge: key, TaskID: key.DependentID}
	}
	if g.HasEdge(key) {
		return nil
	}

	if key.PrerequisiteID == key.DependentID {
		return &CyclicEdgeError{
			PrerequisiteID: key.PrerequisiteID,
			DependentID:    key.DependentID,
			Cycle:          []string{key.PrerequisiteID, key.PrerequisiteID},
		}
	}
	if p := pathBetween(g, key.DependentID, key.PrerequisiteID); p != nil {
		// The new edge closes the loop: prerequisite -> dependent -> ... -> prerequisite.
		cycle := append([]string{key.PrerequisiteID}, p...)
		return &CyclicEdgeError{
			PrerequisiteID: key.PrerequisiteID,
			DependentID:    key.DependentID,
			Cycle:          cycle,
		}
	}
	return nil
}

// pathBetween returns a shortest path from -> ... -> to along dependent edges,
// or nil when to is not reachable from from. Unknown ids are unreachable.
func pathBetween(g *Graph, from, to string) []string {
	if !g.Has(from) || !g.Has(to) {
		return nil
	}

	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			var path []string
			for n := to; n != ""; n = parent[n] {
				path = append(path, n)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, next := range g.dependents[id] {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = id
			queue = append(queue, next)
		}
	}
	return nil
}
