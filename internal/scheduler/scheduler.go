package scheduler

import (
	"context"
	"fmt"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/dag"
	"github.com/vk/snapforge/internal/fingerprint"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/statestore"
)

// StateReader gives access to recorded step state. Unreadable entries must be
// reported as missing.
type StateReader interface {
	Load(ctx context.Context, part string, step lifecycle.Step) (*statestore.Entry, bool)
}

// Scheduler plans lifecycle operations for one project.
type Scheduler struct {
	graph        *dag.Graph
	fingerprints fingerprint.Set
	state        StateReader
}

// New returns a scheduler over a validated graph, the fresh fingerprints of
// every part and the recorded state.
func New(graph *dag.Graph, fingerprints fingerprint.Set, state StateReader) *Scheduler {
	return &Scheduler{graph: graph, fingerprints: fingerprints, state: state}
}

// Plan computes the operations bringing parts (every part when empty) to
// target.
func (s *Scheduler) Plan(ctx context.Context, target lifecycle.Step, parts []string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	if !target.Valid() {
		return nil, fmt.Errorf("invalid target step %d", int(target))
	}
	if len(parts) == 0 {
		parts = s.graph.Nodes()
	}
	for _, part := range parts {
		if !s.graph.Has(part) {
			return nil, &lifecycle.ManifestError{Part: part, Reason: "no such part in the project"}
		}
	}

	order, err := s.graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	need, err := s.requirements(target, parts)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Target: target, Parts: parts}
	index := make(map[string]map[lifecycle.Step]int)

	for _, part := range order {
		highest, ok := need[part]
		if !ok {
			continue
		}
		index[part] = make(map[lifecycle.Step]int)
		deps, err := s.graph.Dependencies(part)
		if err != nil {
			return nil, err
		}

		for _, step := range lifecycle.StepsThrough(highest) {
			op := Operation{Part: part, Step: step, Fingerprint: s.fingerprints.Get(part, step)}
			if op.Fingerprint.IsZero() {
				return nil, fmt.Errorf("no fingerprint for step %q of part %q", step, part)
			}

			prevIdx := -1
			if prev, ok := step.Previous(); ok {
				if i, scheduled := index[part][prev]; scheduled {
					prevIdx = i
				}
			}

			var depIdx []int
			var restaged string
			if step == lifecycle.Build {
				for _, dep := range deps {
					if i, scheduled := index[dep][lifecycle.Stage]; scheduled {
						depIdx = append(depIdx, i)
						if restaged == "" {
							restaged = dep
						}
					}
				}
			}

			entry, recorded := s.state.Load(ctx, part, step)
			switch {
			case prevIdx >= 0:
				op.Reason = ReasonCascade
			case restaged != "":
				op.Reason, op.Detail = ReasonDependency, restaged
			case !recorded:
				op.Reason = ReasonMissing
			case !fingerprint.Equal(entry.Fingerprint, op.Fingerprint):
				op.Reason = ReasonChanged
			default:
				op.Reason = ReasonUpToDate
				plan.Skipped = append(plan.Skipped, op)
				continue
			}

			if prevIdx >= 0 {
				op.DependsOn = append(op.DependsOn, prevIdx)
			}
			op.DependsOn = append(op.DependsOn, depIdx...)
			index[part][step] = len(plan.Operations)
			plan.Operations = append(plan.Operations, op)
		}
	}

	logger.Debug("Plan computed.", "target", target, "operations", len(plan.Operations), "up_to_date", len(plan.Skipped))
	return plan, nil
}

// requirements maps every part that takes part in the plan to the highest
// step it must reach. Building a part needs every transitive dependency
// staged.
func (s *Scheduler) requirements(target lifecycle.Step, parts []string) (map[string]lifecycle.Step, error) {
	need := make(map[string]lifecycle.Step)
	if target >= lifecycle.Build {
		closure, err := s.graph.Closure(parts)
		if err != nil {
			return nil, err
		}
		for _, part := range closure {
			deps, err := s.graph.Dependencies(part)
			if err != nil {
				return nil, err
			}
			for _, dep := range deps {
				need[dep] = lifecycle.Stage
			}
		}
	}
	for _, part := range parts {
		if current, ok := need[part]; !ok || current < target {
			need[part] = target
		}
	}
	return need, nil
}
