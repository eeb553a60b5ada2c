package dag

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a collection of parts and their dependencies. All operations on
// the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by part name.
	nodes map[string]*node
}

// node represents a single part. It is un-exported to enforce interaction
// with the graph via the public API (using part names).
type node struct {
	id string
	// deps holds the parts this part depends on.
	deps map[string]*node
	// dependents holds the parts depending on this part.
	dependents map[string]*node
}

// CycleError reports a dependency cycle. Cycle starts and ends with the same
// part, following dependency edges.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}
