package registry

import (
	"context"
	"fmt"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/shell"
)

// Resolved is a part bound to its plugin and decoded options.
type Resolved struct {
	Plugin  Plugin
	Options any
}

// Resolve binds a part to its registered plugin.
func (r *Registry) Resolve(part *config.Part) (*Resolved, error) {
	p, ok := r.Lookup(part.Plugin)
	if !ok {
		return nil, &lifecycle.ManifestError{
			Part:   part.Name,
			Reason: fmt.Sprintf("unknown plugin %q (available: %v)", part.Plugin, r.Names()),
		}
	}
	options, err := p.DecodeOptions(part)
	if err != nil {
		return nil, err
	}
	return &Resolved{Plugin: p.New(), Options: options}, nil
}

// ValidateParts checks every part of the model against the registry so that
// manifest problems surface before anything executes.
func (r *Registry) ValidateParts(ctx context.Context, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	for _, name := range model.PartNames() {
		part := model.Parts[name]
		if _, err := r.Resolve(part); err != nil {
			return err
		}
		if part.OverrideBuild != "" {
			if err := shell.Validate(part.OverrideBuild); err != nil {
				return &lifecycle.ManifestError{Part: name, Reason: "override_build is not a valid script", Err: err}
			}
		}
	}
	logger.Debug("Parts validated against plugin registry.", "parts", len(model.Parts), "plugins", len(r.plugins))
	return nil
}
