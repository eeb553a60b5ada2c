package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/fsutil"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/migrator"
	"github.com/vk/snapforge/internal/registry"
	"github.com/vk/snapforge/internal/scheduler"
	"github.com/vk/snapforge/internal/shell"
	"github.com/vk/snapforge/internal/statestore"
)

// RunStep executes a single operation and records its state. Any failure is
// returned as a *lifecycle.StepError naming the part and step.
func (e *Executor) RunStep(ctx context.Context, op scheduler.Operation) error {
	logger := ctxlog.FromContext(ctx).With("part", op.Part, "step", op.Step.String())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("Running step.", "reason", string(op.Reason))

	if err := e.runStep(ctx, op); err != nil {
		return &lifecycle.StepError{Part: op.Part, Step: op.Step, Err: err}
	}
	logger.Debug("Step completed.", "fingerprint", op.Fingerprint.Short())
	return nil
}

func (e *Executor) runStep(ctx context.Context, op scheduler.Operation) error {
	part, ok := e.opts.Model.Parts[op.Part]
	if !ok {
		return fmt.Errorf("part %q is not defined", op.Part)
	}
	if err := e.Invalidate(ctx, op.Part, op.Step); err != nil {
		return err
	}
	if err := e.opts.Layout.EnsurePart(op.Part); err != nil {
		return err
	}

	entry := &statestore.Entry{Part: op.Part, Step: op.Step, Fingerprint: op.Fingerprint}
	switch op.Step {
	case lifecycle.Pull, lifecycle.Build:
		if err := e.runPlugin(ctx, part, op.Step); err != nil {
			return err
		}
		return e.opts.State.Save(entry)
	case lifecycle.Stage:
		return e.migrate(ctx, part, entry, e.opts.Layout.PartInstall(op.Part), e.opts.Layout.Stage(), part.StageFiles, nil)
	case lifecycle.Prime:
		staged, ok := e.opts.State.Load(ctx, op.Part, lifecycle.Stage)
		if !ok {
			return errors.New("part is not staged")
		}
		subset := append(append([]string{}, staged.Files...), staged.Dirs...)
		return e.migrate(ctx, part, entry, e.opts.Layout.Stage(), e.opts.Layout.Prime(), part.PrimeFiles, subset)
	default:
		return fmt.Errorf("unknown step %v", op.Step)
	}
}

// migrate merges files into a shared area while holding its lock until the
// step state is recorded.
func (e *Executor) migrate(ctx context.Context, part *config.Part, entry *statestore.Entry, src, dest string, fileset config.Fileset, subset []string) error {
	unlock := e.opts.Migrator.Lock(dest)
	defer unlock()

	owners, err := e.opts.State.Owners(ctx, entry.Step)
	if err != nil {
		return err
	}
	res, err := e.opts.Migrator.Migrate(ctx, migrator.Request{
		Part:      part.Name,
		SourceDir: src,
		DestDir:   dest,
		Fileset:   fileset,
		Subset:    subset,
		Owners:    owners,
	})
	if err != nil {
		return err
	}
	entry.Files, entry.Dirs = res.Files, res.Dirs
	return e.opts.State.Save(entry)
}

// runPlugin prepares the part directories and runs the plugin's pull or
// build, or the part's build override.
func (e *Executor) runPlugin(ctx context.Context, part *config.Part, step lifecycle.Step) error {
	resolved, err := e.opts.Registry.Resolve(part)
	if err != nil {
		return err
	}
	env := e.env(part, resolved.Options)

	var runErr error
	switch step {
	case lifecycle.Pull:
		if err := fsutil.ResetDir(env.SrcDir); err != nil {
			return err
		}
		runErr = resolved.Plugin.Pull(ctx, env)
	case lifecycle.Build:
		if err := migrator.Mirror(env.SrcDir, env.BuildDir, part.BuildFiles); err != nil {
			return fmt.Errorf("failed to prepare build directory: %w", err)
		}
		if err := fsutil.ResetDir(env.InstallDir); err != nil {
			return err
		}
		if part.OverrideBuild != "" {
			runErr = env.Run(ctx, "override-build", part.OverrideBuild)
		} else {
			runErr = resolved.Plugin.Build(ctx, env)
		}
	}
	if runErr != nil {
		return &lifecycle.PluginError{Part: part.Name, Plugin: part.Plugin, Err: runErr}
	}
	return nil
}

func (e *Executor) env(part *config.Part, options any) *registry.Env {
	l := e.opts.Layout
	env := &registry.Env{
		Part:       part,
		Project:    e.opts.Model.Project,
		Options:    options,
		ProjectDir: e.opts.Model.Dir,
		WorkDir:    l.Root,
		SrcDir:     l.PartSrc(part.Name),
		BuildDir:   l.PartBuild(part.Name),
		InstallDir: l.PartInstall(part.Name),
		StageDir:   l.Stage(),
		PrimeDir:   l.Prime(),
		Parallel:   e.opts.Parallel,
		Stdout:     e.opts.Stdout,
		Stderr:     e.opts.Stderr,
	}

	vars := map[string]string{
		"PART_NAME":            part.Name,
		"PART_SRC":             env.SrcDir,
		"PART_BUILD":           env.BuildDir,
		"PART_INSTALL":         env.InstallDir,
		"STAGE":                env.StageDir,
		"PRIME":                env.PrimeDir,
		"PROJECT_DIR":          env.ProjectDir,
		"PARALLEL_BUILD_COUNT": strconv.Itoa(env.Parallel),
	}
	if env.Project != nil {
		vars["PROJECT_NAME"] = env.Project.Name
		vars["PROJECT_VERSION"] = env.Project.Version
	}
	for k, v := range part.BuildEnvironment {
		vars[k] = v
	}
	env.Vars = vars
	env.Exec = func(ctx context.Context, name, script, dir string) error {
		return shell.Run(ctx, shell.Script{
			Name:   part.Name + "/" + name,
			Source: script,
			Dir:    dir,
			Env:    vars,
			Stdout: env.Stdout,
			Stderr: env.Stderr,
		})
	}
	return env
}
