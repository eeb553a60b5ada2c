// Package lifecycle defines the ordered lifecycle steps every part passes
// through and the error taxonomy shared by the engine's components.
package lifecycle

import (
	"fmt"
	"strings"
)

// Step is one of the ordered lifecycle phases of a part.
type Step int

const (
	// Pull fetches the part's source into its private source directory.
	Pull Step = iota
	// Build runs the part's plugin against the pulled source.
	Build
	// Stage merges the part's installed output into the shared staging area.
	Stage
	// Prime merges the part's staged files into the final priming area.
	Prime
)

// Steps lists every step in lifecycle order.
var Steps = []Step{Pull, Build, Stage, Prime}

var stepNames = map[Step]string{
	Pull:  "pull",
	Build: "build",
	Stage: "stage",
	Prime: "prime",
}

// String returns the lowercase name of the step.
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

// Next returns the step following s and false when s is the last one.
func (s Step) Next() (Step, bool) {
	if s >= Prime || !s.Valid() {
		return s, false
	}
	return s + 1, true
}

// Previous returns the step preceding s and false when s is the first one.
func (s Step) Previous() (Step, bool) {
	if s <= Pull || !s.Valid() {
		return s, false
	}
	return s - 1, true
}

// ParseStep converts a step name into a Step.
func ParseStep(name string) (Step, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for step, stepName := range stepNames {
		if stepName == needle {
			return step, nil
		}
	}
	return Pull, fmt.Errorf("unknown lifecycle step %q: must be one of pull, build, stage, prime", name)
}

// StepsThrough returns every step from pull up to and including target.
func StepsThrough(target Step) []Step {
	out := make([]Step, 0, len(Steps))
	for _, s := range Steps {
		if s > target {
			break
		}
		out = append(out, s)
	}
	return out
}

// StepsFrom returns every step from start up to prime.
func StepsFrom(start Step) []Step {
	out := make([]Step, 0, len(Steps))
	for _, s := range Steps {
		if s >= start {
			out = append(out, s)
		}
	}
	return out
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid lifecycle step %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(text []byte) error {
	step, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = step
	return nil
}
