// Package executor runs the operations of a plan: each (part, step) is
// dispatched to the part's plugin or to the filesystem migrator, and its
// state is recorded on success. Execution halts at the first failure and
// never starts a new operation once the context is cancelled; operations
// already running finish on a detached context so their state is either
// fully recorded or not at all.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/layout"
	"github.com/vk/snapforge/internal/migrator"
	"github.com/vk/snapforge/internal/registry"
	"github.com/vk/snapforge/internal/scheduler"
	"github.com/vk/snapforge/internal/statestore"
	"golang.org/x/sync/errgroup"
)

// Options configures an Executor.
type Options struct {
	Model    *config.Model
	Layout   *layout.Layout
	Registry *registry.Registry
	State    *statestore.Store
	Migrator *migrator.Migrator
	// Workers bounds how many independent operations run at once.
	Workers int
	// Parallel is the job count handed to build tools.
	Parallel int
	Stdout   io.Writer
	Stderr   io.Writer
}

// Executor runs plans for one project.
type Executor struct {
	opts Options
}

// New returns an executor. Workers and Parallel default to 1.
func New(opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Migrator == nil {
		opts.Migrator = migrator.New()
	}
	return &Executor{opts: opts}
}

// Report summarises a plan execution.
type Report struct {
	Completed []scheduler.Operation
	// Failed is the operation that halted execution, if any.
	Failed *scheduler.Operation
	// NotStarted counts operations never started because of a failure or
	// cancellation.
	NotStarted int
	Elapsed    time.Duration
}

type outcome struct {
	index int
	err   error
}

// Execute runs the plan. An operation starts only after every operation it
// depends on succeeded; among ready operations the earliest in the plan goes
// first, so a single worker follows plan order exactly.
func (e *Executor) Execute(ctx context.Context, plan *scheduler.Plan) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	ops := plan.Operations
	report := &Report{}

	remaining := make([]int, len(ops))
	dependents := make([][]int, len(ops))
	var ready []int
	for i, op := range ops {
		remaining[i] = len(op.DependsOn)
		for _, d := range op.DependsOn {
			dependents[d] = append(dependents[d], i)
		}
		if remaining[i] == 0 {
			ready = append(ready, i)
		}
	}

	logger.Debug("Executor starting run.", "operations", len(ops), "workers", e.opts.Workers)
	detached := context.WithoutCancel(ctx)
	done := make(chan outcome, len(ops))
	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	var firstErr error
	started, inflight := 0, 0
	for {
		for firstErr == nil && ctx.Err() == nil && len(ready) > 0 && inflight < e.opts.Workers {
			i := popLowest(&ready)
			op := ops[i]
			started++
			inflight++
			g.Go(func() error {
				done <- outcome{index: i, err: e.RunStep(detached, op)}
				return nil
			})
		}
		if inflight == 0 {
			break
		}

		out := <-done
		inflight--
		op := ops[out.index]
		if out.err != nil {
			logger.Error("Operation failed.", "part", op.Part, "step", op.Step, "error", out.err)
			if firstErr == nil {
				firstErr = out.err
				failed := op
				report.Failed = &failed
			}
			continue
		}
		report.Completed = append(report.Completed, op)
		for _, d := range dependents[out.index] {
			remaining[d]--
			if remaining[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	_ = g.Wait()

	report.NotStarted = len(ops) - started
	report.Elapsed = time.Since(start)
	logger.Debug("Executor finished run.", "completed", len(report.Completed), "not_started", report.NotStarted)

	if firstErr != nil {
		return report, firstErr
	}
	if err := ctx.Err(); err != nil && report.NotStarted > 0 {
		return report, fmt.Errorf("execution interrupted with %d operations not started: %w", report.NotStarted, err)
	}
	return report, nil
}

func popLowest(ready *[]int) int {
	q := *ready
	lowest := 0
	for i := range q {
		if q[i] < q[lowest] {
			lowest = i
		}
	}
	v := q[lowest]
	*ready = append(q[:lowest], q[lowest+1:]...)
	return v
}

// IsInterrupted reports whether err stems from a cancelled execution.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
