package app

import (
	"context"
	"os"
	"time"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/watch"
)

// WatchRoots lists the local directory sources of the project's parts.
func (a *App) WatchRoots() []string {
	var roots []string
	for _, name := range a.model.PartNames() {
		src := a.model.Parts[name].Source
		if src == "" {
			continue
		}
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			roots = append(roots, src)
		}
	}
	return roots
}

// Watch runs the lifecycle command once and again after every batch of
// source changes, until ctx is cancelled. onResult sees each outcome.
func (a *App) Watch(ctx context.Context, target lifecycle.Step, parts []string, debounce time.Duration, onResult func(*Result, error)) error {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)

	run := func(ctx context.Context) error {
		res, err := a.Lifecycle(ctx, target, parts, false)
		if onResult != nil {
			onResult(res, err)
		}
		return err
	}

	w, err := watch.New(watch.Config{
		Roots:    a.WatchRoots(),
		Skip:     []string{a.layout.Root},
		Debounce: debounce,
		OnChange: func(ctx context.Context, changed []string) error {
			logger.Info("Sources changed, re-running.", "files", len(changed))
			return run(ctx)
		},
	})
	if err != nil {
		return err
	}

	if err := run(ctx); err != nil {
		logger.Error("Initial run failed; waiting for changes.", "error", err)
	}
	return w.Run(ctx)
}
