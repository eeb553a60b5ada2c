package dag

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
)

// Build constructs a validated dependency graph from a config model. Unknown
// and self references and cycles are reported as *lifecycle.ManifestError.
func Build(ctx context.Context, model *config.Model) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")
	graph := New()

	// First pass: one node per part.
	for _, name := range model.PartNames() {
		graph.AddNode(name)
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(model.Parts))

	// Second pass: link dependencies.
	for _, name := range model.PartNames() {
		part := model.Parts[name]
		for _, dep := range part.After {
			if dep == name {
				return nil, &lifecycle.ManifestError{Part: name, Reason: "part cannot depend on itself"}
			}
			if !graph.Has(dep) {
				return nil, &lifecycle.ManifestError{
					Part:   name,
					Reason: fmt.Sprintf("'after' references unknown part %q", dep),
				}
			}
			if err := graph.AddEdge(dep, name); err != nil {
				return nil, &lifecycle.ManifestError{Part: name, Reason: "invalid dependency", Err: err}
			}
		}
	}
	logger.Debug("Build: Node linking complete.")

	if err := graph.DetectCycles(); err != nil {
		part := ""
		var cycleErr *CycleError
		if errors.As(err, &cycleErr) && len(cycleErr.Cycle) > 0 {
			part = cycleErr.Cycle[0]
		}
		return nil, &lifecycle.ManifestError{Part: part, Reason: "invalid dependency graph", Err: err}
	}
	logger.Debug("Build: Cycle detection passed.")
	return graph, nil
}
