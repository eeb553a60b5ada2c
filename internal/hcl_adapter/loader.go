package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/fsutil"
	"github.com/vk/snapforge/internal/lifecycle"
)

// ManifestFileName is the manifest looked up when a directory is given.
const ManifestFileName = "snapforge.hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Projects []*ProjectBlock      `hcl:"project,block"`
	Filesets []*FilesetDefinition `hcl:"fileset,block"`
	Parts    []*PartBlock         `hcl:"part,block"`
	Remain   hcl.Body             `hcl:",remain"`
}

// Load parses every manifest file found at the given paths and merges them
// into a single model. Relative part sources resolve against the directory
// of the first path.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	if len(paths) == 0 {
		return nil, &lifecycle.ManifestError{Reason: "no manifest path given"}
	}

	files, dir, err := l.findManifestFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &lifecycle.ManifestError{Reason: fmt.Sprintf("no .hcl manifest found in %v", paths)}
	}
	logger.Debug("Discovered manifest files.", "count", len(files), "dir", dir)

	parser := hclparse.NewParser()
	var (
		projects []*ProjectBlock
		filesets []*FilesetDefinition
		parts    []*PartBlock
	)
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, &lifecycle.ManifestError{Reason: fmt.Sprintf("failed to parse %s", file), Err: diags}
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, &lifecycle.ManifestError{Reason: fmt.Sprintf("failed to decode %s", file), Err: diags}
		}
		projects = append(projects, root.Projects...)
		filesets = append(filesets, root.Filesets...)
		parts = append(parts, root.Parts...)
	}

	model := config.NewModel(dir)
	if err := l.translateProject(model, projects); err != nil {
		return nil, err
	}

	named, err := l.translateFilesets(filesets)
	if err != nil {
		return nil, err
	}

	for _, block := range parts {
		if _, exists := model.Parts[block.Name]; exists {
			return nil, &lifecycle.ManifestError{Part: block.Name, Reason: "part is defined more than once"}
		}
		part, err := l.translatePart(ctx, block, dir, named)
		if err != nil {
			return nil, err
		}
		model.Parts[part.Name] = part
	}

	logger.Debug("HCL loading complete.", "project", model.Project.Name, "parts", len(model.Parts), "filesets", len(named))
	return model, nil
}

// findManifestFiles resolves the given paths into manifest files. A
// directory containing snapforge.hcl contributes only that file; any other
// directory contributes every .hcl file beneath it.
func (l *Loader) findManifestFiles(paths []string) ([]string, string, error) {
	var (
		allFiles []string
		dir      string
	)
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, "", fmt.Errorf("error resolving path %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, "", fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(abs) != ".hcl" {
				return nil, "", fmt.Errorf("specified file is not an .hcl file: %s", path)
			}
			if dir == "" {
				dir = filepath.Dir(abs)
			}
			add(abs)
			continue
		}

		if dir == "" {
			dir = abs
		}
		manifest := filepath.Join(abs, ManifestFileName)
		if _, err := os.Stat(manifest); err == nil {
			add(manifest)
			continue
		}
		found, err := fsutil.FindFilesByExtension(abs, ".hcl")
		if err != nil {
			return nil, "", err
		}
		for _, f := range found {
			add(f)
		}
	}
	return allFiles, dir, nil
}
