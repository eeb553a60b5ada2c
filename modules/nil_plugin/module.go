// Package nil_plugin provides the "nil" plugin: a part with nothing to fetch or
// build, useful to carry only dependencies or build environment.
package nil_plugin

import (
	"context"

	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Plugin does nothing in either step.
type Plugin struct{}

// Pull ignores any declared source.
func (Plugin) Pull(ctx context.Context, env *registry.Env) error {
	if env.Part.Source != "" {
		ctxlog.FromContext(ctx).Warn("The nil plugin ignores the part source.", "part", env.Part.Name)
	}
	return nil
}

// Build produces no files.
func (Plugin) Build(context.Context, *registry.Env) error { return nil }

// Register registers the plugin with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("nil", &registry.RegisteredPlugin{
		New: func() registry.Plugin { return Plugin{} },
	})
}
