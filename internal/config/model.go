package config

import (
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of a project
// manifest.
type Model struct {
	Project *Project
	// Parts is keyed by part name.
	Parts map[string]*Part
	// Dir is the directory relative sources are resolved against.
	Dir string
}

// NewModel returns an empty model rooted at dir.
func NewModel(dir string) *Model {
	return &Model{
		Project: &Project{},
		Parts:   make(map[string]*Part),
		Dir:     dir,
	}
}

// PartNames returns all part names in lexical order.
func (m *Model) PartNames() []string {
	names := make([]string, 0, len(m.Parts))
	for name := range m.Parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project carries the metadata written into the packed archive.
type Project struct {
	Name        string
	Version     string
	Summary     string
	Description string
	Base        string
	Grade       string
	Confinement string
}

// Part is a single buildable unit of the project. It is immutable once
// loaded.
type Part struct {
	Name   string
	Plugin string
	// Source is the source location, resolved to an absolute path when
	// non-empty.
	Source     string
	SourceType string
	// After lists the parts that must be staged before this part builds.
	After            []string
	BuildEnvironment map[string]string
	OverrideBuild    string
	// Options holds plugin-specific attributes, evaluated at load time.
	Options map[string]cty.Value

	BuildFiles Fileset
	StageFiles Fileset
	PrimeFiles Fileset
}

// Fileset is an include/exclude pair of slash-separated glob patterns. An
// empty Include selects everything.
type Fileset struct {
	Include []string
	Exclude []string
}

// IsZero reports whether the fileset carries no patterns at all.
func (f Fileset) IsZero() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0
}
