package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vk/snapforge/internal/app"
	"github.com/vk/snapforge/internal/scheduler"
)

// Ops renders operations as "part:step" strings.
func Ops(ops []scheduler.Operation) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		out = append(out, fmt.Sprintf("%s:%s", op.Part, op.Step))
	}
	return out
}

// AssertExecuted checks, in order, the operations a lifecycle run completed.
func AssertExecuted(t *testing.T, result *app.Result, want ...string) {
	t.Helper()
	var got []string
	if result != nil && result.Report != nil {
		got = Ops(result.Report.Completed)
	}
	if len(want) == 0 {
		want = nil
	}
	if len(got) == 0 {
		got = nil
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("executed operations mismatch (-want +got):\n%s", diff)
	}
}

// AssertLogged checks that the harness logs contain substring.
func AssertLogged(t *testing.T, h *Harness, substring string) {
	t.Helper()
	if !strings.Contains(h.Logs.String(), substring) {
		t.Errorf("expected log output to contain %q", substring)
	}
}
