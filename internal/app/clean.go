package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/dag"
	"github.com/vk/snapforge/internal/lifecycle"
)

// Clean forgets the state of parts from step onwards and removes the
// artifacts those steps produced. With no parts every part is cleaned; with
// no parts and all set, the whole work directory is removed.
func (a *App) Clean(ctx context.Context, parts []string, step lifecycle.Step, all bool) error {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)

	if len(parts) == 0 && all {
		logger.Info("Removing work directory.", "path", a.layout.Root)
		if err := os.RemoveAll(a.layout.Root); err != nil {
			return fmt.Errorf("failed to remove work directory: %w", err)
		}
		return nil
	}
	if !step.Valid() {
		return fmt.Errorf("invalid step %d", int(step))
	}

	if len(parts) == 0 {
		// Parts dropped from the manifest may still own staged files.
		known, err := a.store.Parts()
		if err != nil {
			return err
		}
		parts = union(a.model.PartNames(), known)
	} else {
		for _, part := range parts {
			if _, ok := a.model.Parts[part]; !ok {
				return &lifecycle.ManifestError{Part: part, Reason: "no such part in the project"}
			}
		}
		if step <= lifecycle.Stage {
			if err := a.reportDependents(ctx, parts); err != nil {
				return err
			}
		}
	}

	exec := a.executor()
	for _, part := range parts {
		if err := exec.Invalidate(ctx, part, step); err != nil {
			return fmt.Errorf("failed to clean part %q: %w", part, err)
		}
		if err := a.removeArtifacts(part, step); err != nil {
			return fmt.Errorf("failed to clean part %q: %w", part, err)
		}
		logger.Info("Cleaned part.", "part", part, "step", step)
	}
	return nil
}

// reportDependents tells which parts will rebuild because a cleaned part has
// to stage again.
func (a *App) reportDependents(ctx context.Context, parts []string) error {
	graph, err := dag.Build(ctx, a.model)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	for _, part := range parts {
		dependents, err := graph.Dependents(part)
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			logger.Info("Dependent parts will rebuild on the next run.", "part", part, "dependents", dependents)
		}
	}
	return nil
}

// removeArtifacts deletes the directories the cleaned steps populated.
// Staged and primed files were already withdrawn by invalidation.
func (a *App) removeArtifacts(part string, step lifecycle.Step) error {
	var dirs []string
	switch step {
	case lifecycle.Pull:
		dirs = []string{a.layout.PartDir(part)}
	case lifecycle.Build:
		dirs = []string{a.layout.PartBuild(part), a.layout.PartInstall(part)}
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
