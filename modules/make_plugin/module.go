// Package make_plugin provides the "make" plugin: `make` followed by
// `make install DESTDIR=$PART_INSTALL`.
package make_plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/snapforge/internal/registry"
	"github.com/vk/snapforge/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options are the attributes accepted in a make part's options block.
type Options struct {
	MakeParameters []string `cty:"make_parameters"`
	// MakeFile selects a makefile other than the default.
	MakeFile string `cty:"makefile"`
	// DisableParallel builds with a single job.
	DisableParallel bool `cty:"disable_parallel"`
}

// Plugin builds with make.
type Plugin struct {
	registry.SourcePuller
}

// Build runs the build and install commands in the build directory.
func (Plugin) Build(ctx context.Context, env *registry.Env) error {
	opts, _ := env.Options.(*Options)
	if opts == nil {
		opts = &Options{}
	}
	return env.Run(ctx, "make", Script(opts, env.Parallel))
}

// Script returns the commands run for opts.
func Script(opts *Options, parallel int) string {
	var args []string
	if opts.MakeFile != "" {
		args = append(args, "-f", shell.Quote(opts.MakeFile))
	}
	for _, p := range opts.MakeParameters {
		args = append(args, shell.Quote(p))
	}
	jobs := parallel
	if opts.DisableParallel || jobs < 1 {
		jobs = 1
	}
	common := strings.Join(args, " ")
	build := strings.TrimSpace(fmt.Sprintf("make -j%d %s", jobs, common))
	install := strings.TrimSpace(fmt.Sprintf("make install DESTDIR=\"$PART_INSTALL\" %s", common))
	return build + "\n" + install + "\n"
}

// Register registers the plugin with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterPlugin("make", &registry.RegisteredPlugin{
		NewOptions: func() any { return new(Options) },
		New:        func() registry.Plugin { return Plugin{} },
	})
}
