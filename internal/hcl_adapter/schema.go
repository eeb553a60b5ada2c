package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// ProjectBlock represents the `project` block of a manifest.
type ProjectBlock struct {
	Name        string `hcl:"name,label"`
	Version     string `hcl:"version,optional"`
	Summary     string `hcl:"summary,optional"`
	Description string `hcl:"description,optional"`
	Base        string `hcl:"base,optional"`
	Grade       string `hcl:"grade,optional"`
	Confinement string `hcl:"confinement,optional"`
}

// FilesetDefinition is a top-level named fileset that parts reference with
// a `$name` entry.
type FilesetDefinition struct {
	Name  string   `hcl:"name,label"`
	Paths []string `hcl:"paths"`
}

// FilesetBlock represents a part's `build`, `stage` or `prime` block.
type FilesetBlock struct {
	Include []string `hcl:"include,optional"`
	Exclude []string `hcl:"exclude,optional"`
}

// OptionsBlock holds the plugin-specific attributes of a part.
type OptionsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// PartBlock represents a `part` block from the manifest.
type PartBlock struct {
	Name             string            `hcl:"name,label"`
	Plugin           string            `hcl:"plugin"`
	Source           string            `hcl:"source,optional"`
	SourceType       string            `hcl:"source_type,optional"`
	After            []string          `hcl:"after,optional"`
	BuildEnvironment map[string]string `hcl:"build_environment,optional"`
	OverrideBuild    string            `hcl:"override_build,optional"`
	Options          *OptionsBlock     `hcl:"options,block"`
	Build            *FilesetBlock     `hcl:"build,block"`
	Stage            *FilesetBlock     `hcl:"stage,block"`
	Prime            *FilesetBlock     `hcl:"prime,block"`
}
