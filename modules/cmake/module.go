// Package cmake provides the "cmake" plugin, building cmake based parts
// with the usual configure, build and install sequence.
package cmake

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/snapforge/internal/registry"
	"github.com/vk/snapforge/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options are the attributes accepted in a cmake part's options block.
type Options struct {
	// Configflags are passed to the configure step.
	Configflags []string `cty:"configflags"`
}

// Plugin builds with cmake.
type Plugin struct {
	registry.SourcePuller
}

// Build configures, builds and installs into the part's install directory.
func (Plugin) Build(ctx context.Context, env *registry.Env) error {
	opts, _ := env.Options.(*Options)
	if opts == nil {
		opts = &Options{}
	}
	return env.Run(ctx, "cmake", Script(opts, env.Parallel))
}

// Script returns the command sequence for opts. An install prefix given in
// configflags replaces the empty default.
func Script(opts *Options, parallel int) string {
	flags := make([]string, 0, len(opts.Configflags)+1)
	hasPrefix := false
	for _, f := range opts.Configflags {
		if strings.HasPrefix(f, "-DCMAKE_INSTALL_PREFIX=") {
			hasPrefix = true
		}
		flags = append(flags, shell.Quote(f))
	}
	if !hasPrefix {
		flags = append([]string{"-DCMAKE_INSTALL_PREFIX="}, flags...)
	}
	if parallel < 1 {
		parallel = 1
	}

	lines := []string{
		"cmake . " + strings.Join(flags, " "),
		fmt.Sprintf("cmake --build . -- -j%d", parallel),
		"DESTDIR=\"$PART_INSTALL/\" cmake --build . --target install",
	}
	return strings.Join(lines, "\n") + "\n"
}

// Register registers the plugin with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("cmake", &registry.RegisteredPlugin{
		NewOptions: func() any { return new(Options) },
		New:        func() registry.Plugin { return Plugin{} },
	})
}
