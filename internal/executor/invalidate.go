package executor

import (
	"context"
	"fmt"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
)

// Invalidate forgets every recorded step of part from step onwards: state
// records are removed and files the part alone contributed to the staging
// and priming areas are withdrawn. Later steps go first.
func (e *Executor) Invalidate(ctx context.Context, part string, from lifecycle.Step) error {
	logger := ctxlog.FromContext(ctx)
	steps := lifecycle.StepsFrom(from)

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		entry, ok := e.opts.State.Load(ctx, part, step)
		if ok && (step == lifecycle.Stage || step == lifecycle.Prime) && (len(entry.Files) > 0 || len(entry.Dirs) > 0) {
			if err := e.withdraw(ctx, part, step, entry.Files, entry.Dirs); err != nil {
				return fmt.Errorf("failed to withdraw %s files: %w", step, err)
			}
		}
		if err := e.opts.State.Remove(part, step); err != nil {
			return err
		}
		if ok {
			logger.Debug("Invalidated recorded step.", "part", part, "step", step.String())
		}
	}
	return nil
}

func (e *Executor) withdraw(ctx context.Context, part string, step lifecycle.Step, files, dirs []string) error {
	dest := e.opts.Layout.Stage()
	if step == lifecycle.Prime {
		dest = e.opts.Layout.Prime()
	}
	unlock := e.opts.Migrator.Lock(dest)
	defer unlock()

	owners, err := e.opts.State.Owners(ctx, step)
	if err != nil {
		return err
	}
	return e.opts.Migrator.Withdraw(ctx, part, dest, files, dirs, owners)
}
