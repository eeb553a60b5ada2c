package app

import (
	"context"
	"path/filepath"

	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/pack"
)

// Pack primes every part and archives the primed tree. An empty output
// writes <name>_<version>.tar.xz into the project directory.
func (a *App) Pack(ctx context.Context, output string) (string, error) {
	ctx = a.Context(ctx)
	meta, err := pack.MetadataFor(a.model.Project)
	if err != nil {
		return "", err
	}
	if _, err := a.Lifecycle(ctx, lifecycle.Prime, nil, false); err != nil {
		return "", err
	}
	if output == "" {
		output = filepath.Join(a.config.ProjectDir, pack.ArchiveName(meta))
	}
	return pack.Pack(ctx, pack.Request{
		PrimeDir: a.layout.Prime(),
		Project:  a.model.Project,
		Output:   output,
	})
}
