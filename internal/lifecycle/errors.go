package lifecycle

import (
	"fmt"
	"strings"
)

// ManifestError reports an invalid project manifest. It is always raised
// before any step executes.
type ManifestError struct {
	// Part is the offending part, empty for project-wide problems.
	Part   string
	Reason string
	Err    error
}

func (e *ManifestError) Error() string {
	var b strings.Builder
	b.WriteString("invalid manifest")
	if e.Part != "" {
		fmt.Fprintf(&b, " (part %q)", e.Part)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ManifestError) Unwrap() error { return e.Err }

// PluginError reports the failure of a part's plugin procedure.
type PluginError struct {
	Part   string
	Plugin string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %q failed for part %q: %v", e.Plugin, e.Part, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

// CollisionError reports two parts contributing different content to the same
// destination path.
type CollisionError struct {
	Path string
	// Parts holds the part that already owns the path followed by the part
	// that attempted to overwrite it.
	Parts []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("file collision at %q: parts %s provide different content", e.Path, quoteJoin(e.Parts))
}

// StateStoreError reports persisted state that could not be read. The engine
// recovers by treating the entry as stale.
type StateStoreError struct {
	Part string
	Step Step
	Err  error
}

func (e *StateStoreError) Error() string {
	return fmt.Sprintf("unreadable state for step %q of part %q: %v", e.Step, e.Part, e.Err)
}

func (e *StateStoreError) Unwrap() error { return e.Err }

// StepError identifies the (part, step) operation that halted a plan.
type StepError struct {
	Part string
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("failed to run step %q for part %q: %v", e.Step, e.Part, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, " and ")
}
