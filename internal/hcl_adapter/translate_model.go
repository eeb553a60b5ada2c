// This file contains the logic for translating HCL schema structs into the
// format-agnostic project model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/zclconf/go-cty/cty"
)

// translateProject validates that exactly one project block exists and copies
// its metadata into the model.
func (l *Loader) translateProject(model *config.Model, blocks []*ProjectBlock) error {
	switch len(blocks) {
	case 0:
		return &lifecycle.ManifestError{Reason: "missing project block"}
	case 1:
	default:
		return &lifecycle.ManifestError{Reason: fmt.Sprintf("project block defined %d times", len(blocks))}
	}

	p := blocks[0]
	model.Project = &config.Project{
		Name:        p.Name,
		Version:     p.Version,
		Summary:     p.Summary,
		Description: p.Description,
		Base:        p.Base,
		Grade:       p.Grade,
		Confinement: p.Confinement,
	}
	if model.Project.Grade == "" {
		model.Project.Grade = "stable"
	}
	if model.Project.Confinement == "" {
		model.Project.Confinement = "strict"
	}
	return nil
}

// translateFilesets indexes the named filesets by name.
func (l *Loader) translateFilesets(blocks []*FilesetDefinition) (map[string][]string, error) {
	named := make(map[string][]string, len(blocks))
	for _, fs := range blocks {
		if _, exists := named[fs.Name]; exists {
			return nil, &lifecycle.ManifestError{Reason: fmt.Sprintf("fileset %q is defined more than once", fs.Name)}
		}
		named[fs.Name] = fs.Paths
	}
	return named, nil
}

// translatePart converts the HCL-specific part schema into the agnostic model.
func (l *Loader) translatePart(ctx context.Context, b *PartBlock, dir string, named map[string][]string) (*config.Part, error) {
	logger := ctxlog.FromContext(ctx).With("part", b.Name)
	logger.Debug("Translating HCL part to internal config model.")

	if !validPartName(b.Name) {
		return nil, &lifecycle.ManifestError{
			Part:   b.Name,
			Reason: "part name must start with a lowercase letter or digit and contain only lowercase letters, digits, '+' and '-'",
		}
	}
	if b.Plugin == "" {
		return nil, &lifecycle.ManifestError{Part: b.Name, Reason: "plugin is required"}
	}

	part := &config.Part{
		Name:             b.Name,
		Plugin:           b.Plugin,
		SourceType:       b.SourceType,
		After:            dedupe(b.After),
		BuildEnvironment: b.BuildEnvironment,
		OverrideBuild:    b.OverrideBuild,
		Options:          make(map[string]cty.Value),
	}
	if b.Source != "" {
		part.Source = b.Source
		if !filepath.IsAbs(part.Source) {
			part.Source = filepath.Join(dir, part.Source)
		}
	}

	if b.Options != nil && b.Options.Body != nil {
		attrs, diags := b.Options.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, &lifecycle.ManifestError{Part: b.Name, Reason: "invalid options block", Err: diags}
		}
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, &lifecycle.ManifestError{Part: b.Name, Reason: fmt.Sprintf("invalid value for option %q", name), Err: diags}
			}
			part.Options[name] = val
		}
		logger.Debug("Plugin options evaluated.", "count", len(part.Options))
	}

	var err error
	if part.BuildFiles, err = expandFileset(b.Name, "build", b.Build, named); err != nil {
		return nil, err
	}
	if part.StageFiles, err = expandFileset(b.Name, "stage", b.Stage, named); err != nil {
		return nil, err
	}
	if part.PrimeFiles, err = expandFileset(b.Name, "prime", b.Prime, named); err != nil {
		return nil, err
	}
	return part, nil
}

// dedupe removes repeated entries while keeping the first occurrence order.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// namedFilesetNames returns the known fileset names, for error messages.
func namedFilesetNames(named map[string][]string) []string {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
