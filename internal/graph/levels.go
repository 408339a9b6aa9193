package graph

import "sort"

// TopoOrder returns the tasks in prerequisite-first order using Kahn's
// algorithm. Ties are broken by id so the order is deterministic. On a cyclic
// graph it fails with a *CyclicGraphError listing the tasks left unordered.
func TopoOrder(g *Graph) ([]string, error) {
	inDegree := make(map[string]int, g.Len())
	var queue []string
	for _, id := range g.ids {
		inDegree[id] = len(g.prerequisites[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, g.Len())
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		var ready []string
		for _, next := range g.dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(order) != g.Len() {
		var unresolved []string
		for _, id := range g.ids {
			if inDegree[id] > 0 {
				unresolved = append(unresolved, id)
			}
		}
		return nil, &CyclicGraphError{Unresolved: unresolved}
	}
	return order, nil
}

// AssignLevels computes the topological depth of every task. Tasks without
// prerequisites sit at level 0; every other task sits one level below its
// deepest prerequisite, so level(v) >= level(u)+1 holds for each edge u -> v.
// A task's level is final only once all its prerequisites are processed.
// Cyclic graphs fail fast with a *CyclicGraphError.
func AssignLevels(g *Graph) (map[string]int, error) {
	order, err := TopoOrder(g)
	if err != nil {
		return nil, err
	}

	levels := make(map[string]int, len(order))
	for _, id := range order {
		level := 0
		for _, p := range g.prerequisites[id] {
			if l := levels[p] + 1; l > level {
				level = l
			}
		}
		levels[id] = level
	}
	return levels, nil
}

// Layers groups task ids by level, sorted within each layer.
func Layers(levels map[string]int) [][]string {
	depth := 0
	for _, l := range levels {
		if l+1 > depth {
			depth = l + 1
		}
	}
	layers := make([][]string, depth)
	for id, l := range levels {
		layers[l] = append(layers[l], id)
	}
	for _, layer := range layers {
		sort.Strings(layer)
	}
	return layers
}
