package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/vk/snapforge/internal/executor"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/scheduler"
)

// Color palette shared by all CLI output.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorSuccess   = lipgloss.Color("#10B981")
	ColorError     = lipgloss.Color("#EF4444")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	// SubtitleStyle is for secondary text.
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	SuccessStyle  = lipgloss.NewStyle().Foreground(ColorSuccess)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	// PartStyle highlights part names.
	PartStyle = lipgloss.NewStyle().Foreground(ColorHighlight)
)

// renderPlan prints the operations a run would execute, with the reason each
// one is scheduled.
func renderPlan(w io.Writer, plan *scheduler.Plan) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Plan to %s", plan.Target)))
	if plan.Empty() {
		fmt.Fprintln(w, SuccessStyle.Render("  Everything is up to date."))
		return
	}

	width := 0
	for _, op := range plan.Operations {
		width = max(width, len(op.Part))
	}
	for i, op := range plan.Operations {
		reason := string(op.Reason)
		if op.Detail != "" {
			reason += " (" + op.Detail + ")"
		}
		part := PartStyle.Render(fmt.Sprintf("%-*s", width, op.Part))
		fmt.Fprintf(w, "  %2d. %s  %-5s  %s\n", i+1, part, op.Step, SubtitleStyle.Render(reason))
	}
	if n := len(plan.Skipped); n > 0 {
		fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("  %d step(s) up to date", n)))
	}
}

// renderReport summarises an executed plan.
func renderReport(w io.Writer, report *executor.Report) {
	for _, op := range report.Completed {
		fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✓"), op.Step, PartStyle.Render(op.Part))
	}
	if report.Failed != nil {
		fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render("✗"), report.Failed.Step, PartStyle.Render(report.Failed.Part))
	}
	if report.NotStarted > 0 {
		fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("%d operation(s) not started", report.NotStarted)))
	}
}

// renderFailure prints a one-line summary naming the failed part and step.
func renderFailure(w io.Writer, err error) {
	var stepErr *lifecycle.StepError
	if errors.As(err, &stepErr) {
		fmt.Fprintf(w, "%s %s of %s: %v\n", ErrorStyle.Render("Failed:"), stepErr.Step, PartStyle.Render(stepErr.Part), stepErr.Err)
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Failed:"), err)
}
