package registry

import (
	"context"
	"io"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/sources"
)

// Plugin is the capability every part driver provides.
type Plugin interface {
	// Pull fetches the part's source into Env.SrcDir.
	Pull(ctx context.Context, env *Env) error
	// Build turns Env.BuildDir into installed files under Env.InstallDir.
	Build(ctx context.Context, env *Env) error
}

// Env is everything a plugin may use while running a step of one part.
type Env struct {
	Part    *config.Part
	Project *config.Project
	// Options is the value returned by the plugin's NewOptions, decoded
	// from the part's options block.
	Options any

	ProjectDir string
	WorkDir    string
	SrcDir     string
	BuildDir   string
	InstallDir string
	StageDir   string
	PrimeDir   string
	// Parallel is the job count build tools should use.
	Parallel int

	// Vars holds the variables exported to build scripts.
	Vars   map[string]string
	Stdout io.Writer
	Stderr io.Writer

	// Exec runs a shell script in dir with Vars exported.
	Exec func(ctx context.Context, name, script, dir string) error
}

// Run executes a script in the build directory.
func (e *Env) Run(ctx context.Context, name, script string) error {
	return e.Exec(ctx, name, script, e.BuildDir)
}

// SourcePuller implements Plugin.Pull by fetching the part's declared
// source. Plugins embed it.
type SourcePuller struct{}

// Pull fetches the part's source, leaving the work directory out.
func (SourcePuller) Pull(ctx context.Context, env *Env) error {
	return sources.Fetch(ctx, sources.Request{
		Source:  env.Part.Source,
		Type:    env.Part.SourceType,
		Dest:    env.SrcDir,
		Exclude: []string{env.WorkDir},
	})
}
