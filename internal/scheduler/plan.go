package scheduler

import (
	"fmt"

	"github.com/vk/snapforge/internal/fingerprint"
	"github.com/vk/snapforge/internal/lifecycle"
)

// Reason explains why an operation was scheduled or skipped.
type Reason string

const (
	// ReasonMissing means the step never completed or its record is unreadable.
	ReasonMissing Reason = "not run yet"
	// ReasonChanged means the step's inputs changed since it last ran.
	ReasonChanged Reason = "inputs changed"
	// ReasonCascade means an earlier step of the same part re-runs.
	ReasonCascade Reason = "earlier step re-runs"
	// ReasonDependency means a dependency is re-staged before this build.
	ReasonDependency Reason = "dependency re-staged"
	// ReasonUpToDate marks a skipped step.
	ReasonUpToDate Reason = "up to date"
)

// Operation is one (part, step) unit of work.
type Operation struct {
	Part        string
	Step        lifecycle.Step
	Fingerprint fingerprint.Fingerprint
	Reason      Reason
	// Detail names what triggered the operation, e.g. the re-staged
	// dependency.
	Detail string
	// DependsOn holds the indices of earlier operations that must succeed
	// before this one starts.
	DependsOn []int
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %s", o.Step, o.Part)
}

// Plan is the ordered result of scheduling.
type Plan struct {
	Target     lifecycle.Step
	Parts      []string
	Operations []Operation
	// Skipped lists the required steps found up to date.
	Skipped []Operation
}

// Empty reports whether nothing needs to run.
func (p *Plan) Empty() bool {
	return len(p.Operations) == 0
}

// Index returns the position of (part, step) in the plan, or -1.
func (p *Plan) Index(part string, step lifecycle.Step) int {
	for i, op := range p.Operations {
		if op.Part == part && op.Step == step {
			return i
		}
	}
	return -1
}
