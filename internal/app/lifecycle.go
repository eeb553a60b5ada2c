package app

import (
	"context"
	"fmt"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/dag"
	"github.com/vk/snapforge/internal/executor"
	"github.com/vk/snapforge/internal/fingerprint"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/scheduler"
)

// Result is the outcome of a lifecycle command.
type Result struct {
	Plan *scheduler.Plan
	// Report is nil for a dry run.
	Report *executor.Report
}

// Plan computes the operations that bring parts (every part when empty) to
// target, given the sources as they are now.
func (a *App) Plan(ctx context.Context, target lifecycle.Step, parts []string) (*scheduler.Plan, error) {
	ctx = a.Context(ctx)
	graph, err := dag.Build(ctx, a.model)
	if err != nil {
		return nil, err
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	fps, err := fingerprint.Compute(ctx, a.model, order, fingerprint.SourceDigest(a.layout.Root))
	if err != nil {
		return nil, err
	}
	return scheduler.New(graph, fps, a.store).Plan(ctx, target, parts)
}

// Lifecycle plans and, unless dryRun is set, executes the plan.
func (a *App) Lifecycle(ctx context.Context, target lifecycle.Step, parts []string, dryRun bool) (*Result, error) {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Lifecycle command started.", "target", target, "parts", parts, "dry_run", dryRun)

	plan, err := a.Plan(ctx, target, parts)
	if err != nil {
		return nil, err
	}
	result := &Result{Plan: plan}
	if dryRun {
		return result, nil
	}
	if plan.Empty() {
		logger.Info("Everything is up to date.", "target", target)
		return result, nil
	}

	if err := a.layout.EnsureShared(); err != nil {
		return result, fmt.Errorf("failed to prepare work directory: %w", err)
	}
	logger.Info("🚀 Executing plan.", "operations", len(plan.Operations), "up_to_date", len(plan.Skipped))
	result.Report, err = a.executor().Execute(ctx, plan)
	if err != nil {
		return result, err
	}
	logger.Info("🏁 Execution finished.", "elapsed", result.Report.Elapsed)
	return result, nil
}
