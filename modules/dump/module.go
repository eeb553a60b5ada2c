// Package dump provides the "dump" plugin, which installs the part's source
// tree unchanged.
package dump

import (
	"context"
	"fmt"

	"github.com/vk/snapforge/internal/fsutil"
	"github.com/vk/snapforge/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Plugin copies the build tree into the install directory.
type Plugin struct {
	registry.SourcePuller
}

// Build copies every file, preserving symlinks and modes.
func (Plugin) Build(ctx context.Context, env *registry.Env) error {
	if err := fsutil.CopyTree(env.BuildDir, env.InstallDir); err != nil {
		return fmt.Errorf("failed to dump %s: %w", env.BuildDir, err)
	}
	return nil
}

// Register registers the plugin with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("dump", &registry.RegisteredPlugin{
		New: func() registry.Plugin { return Plugin{} },
	})
}
