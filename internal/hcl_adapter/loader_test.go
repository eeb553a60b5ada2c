package hcl_adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/snapforge/internal/config"
	"github.com/vk/snapforge/internal/ctxlog"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/zclconf/go-cty/cty"
)

const fullManifest = `
project "hello" {
  version = "1.0"
  summary = "Hello"
  base    = "core22"
}

fileset "docs" {
  paths = ["usr/share/doc/**"]
}

part "base" {
  plugin = "dump"
  source = "base"
  stage {
    exclude = ["$docs"]
  }
}

part "app" {
  plugin = "make"
  source = "app"
  after  = ["base", "base"]
  build_environment = { CFLAGS = "-O2" }
  override_build = "make all"
  options {
    make_parameters = ["PREFIX=/usr"]
    disable_parallel = true
  }
  prime {
    include = ["usr/**", "-usr/lib/*.a"]
  }
}
`

func writeManifests(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func load(t *testing.T, paths ...string) (*config.Model, error) {
	t.Helper()
	return NewLoader().Load(ctxlog.Discard(context.Background()), paths...)
}

func TestLoadFullManifest(t *testing.T) {
	// --- Arrange ---
	dir := writeManifests(t, map[string]string{ManifestFileName: fullManifest})

	// --- Act ---
	model, err := load(t, dir)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, dir, model.Dir)
	assert.Equal(t, &config.Project{
		Name:        "hello",
		Version:     "1.0",
		Summary:     "Hello",
		Base:        "core22",
		Grade:       "stable",
		Confinement: "strict",
	}, model.Project)
	assert.Equal(t, []string{"app", "base"}, model.PartNames())

	base := model.Parts["base"]
	assert.Equal(t, filepath.Join(dir, "base"), base.Source)
	assert.Equal(t, config.Fileset{Exclude: []string{"usr/share/doc/**"}}, base.StageFiles)

	app := model.Parts["app"]
	assert.Equal(t, "make", app.Plugin)
	assert.Equal(t, []string{"base"}, app.After, "duplicate dependencies collapse")
	assert.Equal(t, map[string]string{"CFLAGS": "-O2"}, app.BuildEnvironment)
	assert.Equal(t, "make all", app.OverrideBuild)
	assert.Equal(t, config.Fileset{Include: []string{"usr/**"}, Exclude: []string{"usr/lib/*.a"}}, app.PrimeFiles)
	assert.True(t, app.BuildFiles.IsZero())

	require.Contains(t, app.Options, "make_parameters")
	assert.True(t, app.Options["disable_parallel"].RawEquals(cty.True))
	params := app.Options["make_parameters"].AsValueSlice()
	require.Len(t, params, 1)
	assert.Equal(t, "PREFIX=/usr", params[0].AsString())
}

func TestLoadMergesDirectoryWithoutManifestName(t *testing.T) {
	dir := writeManifests(t, map[string]string{
		"project.hcl":      `project "split" {}`,
		"parts/a.hcl":      `part "a" { plugin = "nil" }`,
		"parts/b.hcl":      `part "b" { plugin = "nil" }`,
		".snapforge/x.hcl": `part "hidden" { plugin = "nil" }`,
	})

	model, err := load(t, dir)

	require.NoError(t, err)
	assert.Equal(t, "split", model.Project.Name)
	assert.Equal(t, []string{"a", "b"}, model.PartNames())
}

func TestLoadSingleFileResolvesSourcesAgainstItsDirectory(t *testing.T) {
	dir := writeManifests(t, map[string]string{
		"sub/project.hcl": `
project "p" {}
part "a" {
  plugin = "dump"
  source = "src"
}
part "b" {
  plugin = "dump"
  source = "/abs/src"
}`,
	})

	model, err := load(t, filepath.Join(dir, "sub", "project.hcl"))

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "src"), model.Parts["a"].Source)
	assert.Equal(t, "/abs/src", model.Parts["b"].Source)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name     string
		manifest string
		wantPart string
		wantErr  string
	}{
		{
			name:     "missing project",
			manifest: `part "a" { plugin = "nil" }`,
			wantErr:  "missing project block",
		},
		{
			name:     "two projects",
			manifest: "project \"a\" {}\nproject \"b\" {}",
			wantErr:  "project block defined 2 times",
		},
		{
			name:     "duplicate part",
			manifest: "project \"p\" {}\npart \"a\" { plugin = \"nil\" }\npart \"a\" { plugin = \"dump\" }",
			wantPart: "a",
			wantErr:  "part is defined more than once",
		},
		{
			name:     "part name escaping the work directory",
			manifest: "project \"p\" {}\npart \"../..\" { plugin = \"nil\" }",
			wantPart: "../..",
			wantErr:  "part name must start with a lowercase letter or digit",
		},
		{
			name:     "part name with a path separator",
			manifest: "project \"p\" {}\npart \"lib/x\" { plugin = \"nil\" }",
			wantPart: "lib/x",
			wantErr:  "part name must start",
		},
		{
			name:     "uppercase part name",
			manifest: "project \"p\" {}\npart \"App\" { plugin = \"nil\" }",
			wantPart: "App",
			wantErr:  "part name must start",
		},
		{
			name:     "empty plugin",
			manifest: "project \"p\" {}\npart \"a\" { plugin = \"\" }",
			wantPart: "a",
			wantErr:  "plugin is required",
		},
		{
			name: "unknown fileset",
			manifest: `
project "p" {}
part "a" {
  plugin = "nil"
  stage {
    include = ["$nothing"]
  }
}`,
			wantPart: "a",
			wantErr:  `stage references unknown fileset "nothing"`,
		},
		{
			name: "escaping pattern",
			manifest: `
project "p" {}
part "a" {
  plugin = "nil"
  prime {
    include = ["../etc/passwd"]
  }
}`,
			wantPart: "a",
			wantErr:  "pattern escapes the part directory",
		},
		{
			name: "absolute pattern",
			manifest: `
project "p" {}
part "a" {
  plugin = "nil"
  build {
    exclude = ["/usr"]
  }
}`,
			wantPart: "a",
			wantErr:  "pattern must be relative",
		},
		{
			name:     "syntax error",
			manifest: `part "a" {`,
			wantErr:  "failed to parse",
		},
		{
			name:     "unknown attribute",
			manifest: "project \"p\" {}\npart \"a\" {\n  plugin = \"nil\"\n  colour = \"red\"\n}",
			wantErr:  "failed to decode",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeManifests(t, map[string]string{ManifestFileName: tc.manifest})

			_, err := load(t, dir)

			var manifestErr *lifecycle.ManifestError
			require.ErrorAs(t, err, &manifestErr)
			assert.Equal(t, tc.wantPart, manifestErr.Part)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadWithoutManifest(t *testing.T) {
	var manifestErr *lifecycle.ManifestError

	_, err := load(t, t.TempDir())
	require.ErrorAs(t, err, &manifestErr)
	assert.ErrorContains(t, err, "no .hcl manifest found")

	_, err = load(t)
	require.ErrorAs(t, err, &manifestErr)
	assert.ErrorContains(t, err, "no manifest path given")
}
