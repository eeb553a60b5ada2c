package dag

import (
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Has reports whether the graph contains the part.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns every part name, sorted.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return sortedKeys(g.nodes)
}

// Dependencies returns, sorted, the parts the given part depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(n.deps), nil
}

// Dependents returns, sorted, the parts depending on the given part.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(n.dependents), nil
}

// DetectCycles checks the graph for cycles with a depth-first search that
// colours nodes as visiting (on the current path) or visited (fully
// explored). The first cycle found is returned as a *CycleError holding the
// path. Traversal follows sorted names so the reported path is stable.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	var path []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if visited[n.id] {
			return nil
		}
		if visiting[n.id] {
			start := 0
			for i, id := range path {
				if id == n.id {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), n.id)
			return &CycleError{Cycle: cycle}
		}

		visiting[n.id] = true
		path = append(path, n.id)

		for _, id := range sortedKeys(n.deps) {
			if err := visit(n.deps[id]); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		delete(visiting, n.id)
		visited[n.id] = true
		return nil
	}

	for _, id := range sortedKeys(g.nodes) {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every part with dependencies before dependents.
// Among parts that are ready at the same time, the lexically smallest comes
// first.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remaining := make(map[string]int, len(g.nodes))
	var ready []string
	for id, n := range g.nodes {
		remaining[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for dependent := range g.nodes[id].dependents {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return order, nil
}

// Closure returns, in topological order, the given parts together with all
// their transitive dependencies.
func (g *Graph) Closure(ids []string) ([]string, error) {
	g.mutex.RLock()
	wanted := make(map[string]bool)
	var walk func(n *node)
	walk = func(n *node) {
		if wanted[n.id] {
			return
		}
		wanted[n.id] = true
		for _, dep := range n.deps {
			walk(dep)
		}
	}
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			g.mutex.RUnlock()
			return nil, fmt.Errorf("node not found: %s", id)
		}
		walk(n)
	}
	g.mutex.RUnlock()

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(wanted))
	for _, id := range order {
		if wanted[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func sortedKeys(m map[string]*node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
