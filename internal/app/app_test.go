package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/testutil"
	"github.com/vk/snapforge/modules/dump"
)

const twoPartManifest = `
project "hello" {
  version = "1.0"
  summary = "Says hello"
}

part "base" {
  plugin = "dump"
  source = "base"
}

part "app" {
  plugin = "dump"
  source = "app"
  after  = ["base"]
}
`

func twoPartProject(t *testing.T) *testutil.Harness {
	t.Helper()
	return testutil.NewHarness(t, map[string]string{
		"snapforge.hcl":        twoPartManifest,
		"base/lib/libbase.txt": "base v1",
		"app/bin/app":          "app v1",
	})
}

func TestPrimeAppRunsDependencyThroughStageFirst(t *testing.T) {
	// --- Arrange ---
	h := twoPartProject(t)

	// --- Act ---
	result, err := h.Run(lifecycle.Prime, "app")

	// --- Assert ---
	require.NoError(t, err)
	testutil.AssertExecuted(t, result,
		"base:pull", "base:build", "base:stage",
		"app:pull", "app:build", "app:stage", "app:prime",
	)
	assert.FileExists(t, h.Stage("lib/libbase.txt"))
	assert.FileExists(t, h.Prime("bin/app"))
	assert.NoFileExists(t, h.Prime("lib/libbase.txt"))
	testutil.AssertLogged(t, h, "run_id=")
}

func TestSecondRunDoesNothing(t *testing.T) {
	h := twoPartProject(t)
	_, err := h.Run(lifecycle.Prime, "app")
	require.NoError(t, err)

	result, err := h.Run(lifecycle.Prime, "app")

	require.NoError(t, err)
	assert.True(t, result.Plan.Empty())
	assert.Len(t, result.Plan.Skipped, 7)
	testutil.AssertExecuted(t, result)
}

func TestCleanAppBuildReRunsOnlyApp(t *testing.T) {
	// --- Arrange ---
	h := twoPartProject(t)
	_, err := h.Run(lifecycle.Prime, "app")
	require.NoError(t, err)

	// --- Act ---
	require.NoError(t, h.App.Clean(context.Background(), []string{"app"}, lifecycle.Build, false))
	assert.NoFileExists(t, h.Prime("bin/app"), "clean withdraws primed files")
	assert.NoDirExists(t, filepath.Join(h.App.Layout().PartBuild("app")))
	result, err := h.Run(lifecycle.Prime, "app")

	// --- Assert ---
	require.NoError(t, err)
	testutil.AssertExecuted(t, result, "app:build", "app:stage", "app:prime")
	assert.FileExists(t, h.Prime("bin/app"))
}

func TestDependencySourceChangeRebuildsDependent(t *testing.T) {
	h := twoPartProject(t)
	_, err := h.Run(lifecycle.Prime, "app")
	require.NoError(t, err)

	h.WriteFile("base/lib/libbase.txt", "base v2")
	result, err := h.Run(lifecycle.Prime, "app")

	require.NoError(t, err)
	testutil.AssertExecuted(t, result,
		"base:pull", "base:build", "base:stage",
		"app:build", "app:stage", "app:prime",
	)
	data, err := os.ReadFile(h.Stage("lib/libbase.txt"))
	require.NoError(t, err)
	assert.Equal(t, "base v2", string(data))
}

func TestDryRunExecutesNothing(t *testing.T) {
	h := twoPartProject(t)

	result, err := h.App.Lifecycle(context.Background(), lifecycle.Stage, nil, true)

	require.NoError(t, err)
	assert.Nil(t, result.Report)
	assert.Equal(t, []string{
		"base:pull", "base:build", "base:stage",
		"app:pull", "app:build", "app:stage",
	}, testutil.Ops(result.Plan.Operations))
	assert.NoDirExists(t, h.App.Layout().Stage())
}

func TestCleanDependencyStageRebuildsDependents(t *testing.T) {
	// --- Arrange ---
	h := twoPartProject(t)
	_, err := h.Run(lifecycle.Prime, "app")
	require.NoError(t, err)

	// --- Act ---
	require.NoError(t, h.App.Clean(context.Background(), []string{"base"}, lifecycle.Stage, false))
	result, err := h.Run(lifecycle.Prime, "app")

	// --- Assert ---
	require.NoError(t, err)
	testutil.AssertLogged(t, h, "Dependent parts will rebuild on the next run.")
	testutil.AssertExecuted(t, result, "base:stage", "app:build", "app:stage", "app:prime")
}

func TestCleanEverythingRemovesWorkDir(t *testing.T) {
	h := twoPartProject(t)
	_, err := h.Run(lifecycle.Stage)
	require.NoError(t, err)

	require.NoError(t, h.App.Clean(context.Background(), nil, lifecycle.Pull, true))

	assert.NoDirExists(t, h.App.Layout().Root)
	result, err := h.Run(lifecycle.Stage)
	require.NoError(t, err)
	assert.Len(t, result.Report.Completed, 6)
}

func TestCleanUnknownPart(t *testing.T) {
	h := twoPartProject(t)

	err := h.App.Clean(context.Background(), []string{"nope"}, lifecycle.Pull, false)

	var manifestErr *lifecycle.ManifestError
	require.ErrorAs(t, err, &manifestErr)
	assert.Equal(t, "nope", manifestErr.Part)
}

func TestPackWritesArchiveNamedAfterProject(t *testing.T) {
	h := twoPartProject(t)

	out, err := h.App.Pack(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.Dir, "hello_1.0.tar.xz"), out)
	assert.FileExists(t, out)
	assert.FileExists(t, h.Prime("lib/libbase.txt"), "pack primes every part")
}

func TestManifestErrorsSurfaceBeforeExecution(t *testing.T) {
	testCases := []struct {
		name     string
		manifest string
		wantPart string
		wantErr  string
	}{
		{
			name: "cycle",
			manifest: `
project "p" {}
part "a" {
  plugin = "nil"
  after  = ["b"]
}
part "b" {
  plugin = "nil"
  after  = ["a"]
}`,
			wantPart: "a",
			wantErr:  "dependency cycle detected",
		},
		{
			name: "unknown dependency",
			manifest: `
project "p" {}
part "a" {
  plugin = "nil"
  after  = ["ghost"]
}`,
			wantPart: "a",
			wantErr:  `'after' references unknown part "ghost"`,
		},
		{
			name: "unknown plugin",
			manifest: `
project "p" {}
part "a" {
  plugin = "gradle"
}`,
			wantPart: "a",
			wantErr:  `unknown plugin "gradle"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := &testutil.Harness{T: t, Dir: t.TempDir(), Logs: &testutil.SafeBuffer{}, Workers: 1}
			h.WriteFile("snapforge.hcl", tc.manifest)

			err := h.Reload()

			var manifestErr *lifecycle.ManifestError
			require.ErrorAs(t, err, &manifestErr)
			assert.Equal(t, tc.wantPart, manifestErr.Part)
			assert.ErrorContains(t, err, tc.wantErr)
			assert.NoDirExists(t, filepath.Join(h.Dir, ".snapforge"))
		})
	}
}

func TestIndependentPartsBuildConcurrently(t *testing.T) {
	// --- Arrange ---
	sleeper := testutil.NewSleeperModule(300 * time.Millisecond)
	h := testutil.NewHarness(t, map[string]string{
		"snapforge.hcl": `
project "p" {}
part "a" {
  plugin = "sleeper"
  source = "a"
}
part "b" {
  plugin = "sleeper"
  source = "b"
}
part "c" {
  plugin = "dump"
  source = "c"
  after  = ["a", "b"]
}`,
		"a/a.txt": "a",
		"b/b.txt": "b",
		"c/c.txt": "c",
	}, sleeper, &dump.Module{})
	h.Workers = 4

	// --- Act ---
	result, err := h.Run(lifecycle.Stage)

	// --- Assert ---
	require.NoError(t, err)
	assert.Len(t, result.Report.Completed, 9)

	a, ok := sleeper.Record("a")
	require.True(t, ok)
	b, ok := sleeper.Record("b")
	require.True(t, ok)
	assert.True(t, a.Overlaps(b), "independent builds should overlap")
	assert.FileExists(t, h.Stage("c.txt"))
}
