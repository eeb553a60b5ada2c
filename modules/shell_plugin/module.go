// Package shell_plugin provides the "shell" plugin, whose build is an inline script
// run by the embedded interpreter.
package shell_plugin

import (
	"context"

	"github.com/vk/snapforge/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options are the attributes accepted in a shell part's options block.
type Options struct {
	Script string `cty:"script" option:"required"`
}

// Plugin runs the configured script.
type Plugin struct {
	registry.SourcePuller
}

// Build runs the script in the build directory.
func (Plugin) Build(ctx context.Context, env *registry.Env) error {
	opts := env.Options.(*Options)
	return env.Run(ctx, "shell", opts.Script)
}

// Register registers the plugin with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("shell", &registry.RegisteredPlugin{
		NewOptions: func() any { return new(Options) },
		New:        func() registry.Plugin { return Plugin{} },
	})
}
