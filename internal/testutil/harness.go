// Package testutil provides the project harness shared by the end-to-end
// tests: it writes a manifest and part sources into a temporary directory
// and builds App instances over it.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/snapforge/internal/app"
	"github.com/vk/snapforge/internal/hcl_adapter"
	"github.com/vk/snapforge/internal/lifecycle"
	"github.com/vk/snapforge/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Harness is a project on disk plus the App driving it.
type Harness struct {
	T       *testing.T
	Dir     string
	Logs    *SafeBuffer
	App     *app.App
	Workers int
	modules []registry.Module
}

// NewHarness writes files (paths relative to the project directory) and
// loads the project. The manifest must be among the files. No modules
// means the built-in plugins.
func NewHarness(t *testing.T, files map[string]string, modules ...registry.Module) *Harness {
	t.Helper()
	h := &Harness{T: t, Dir: t.TempDir(), Logs: &SafeBuffer{}, Workers: 1, modules: modules}
	for name, content := range files {
		h.WriteFile(name, content)
	}

	t.Cleanup(func() {
		if os.Getenv("SNAPFORGE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), h.Logs.String())
		}
	})

	require.NoError(t, h.Reload())
	return h
}

// Reload builds a fresh App over the project, as a new invocation of the
// tool would.
func (h *Harness) Reload() error {
	h.T.Helper()
	cfg, err := app.NewConfig(app.Config{
		ProjectDir: h.Dir,
		Workers:    h.Workers,
		Parallel:   1,
		LogLevel:   "debug",
		LogFormat:  "text",
	})
	if err != nil {
		return err
	}
	a, err := app.NewApp(h.Logs, cfg, hcl_adapter.NewLoader(), h.modules...)
	if err != nil {
		return err
	}
	h.App = a
	return nil
}

// Run reloads the project and runs the lifecycle through target.
func (h *Harness) Run(target lifecycle.Step, parts ...string) (*app.Result, error) {
	h.T.Helper()
	require.NoError(h.T, h.Reload())
	return h.App.Lifecycle(context.Background(), target, parts, false)
}

// WriteFile writes content to a path relative to the project directory.
func (h *Harness) WriteFile(rel, content string) {
	h.T.Helper()
	path := filepath.Join(h.Dir, filepath.FromSlash(rel))
	require.NoError(h.T, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.T, os.WriteFile(path, []byte(content), 0o644))
}

// ReadFile reads a path relative to the project directory.
func (h *Harness) ReadFile(rel string) string {
	h.T.Helper()
	data, err := os.ReadFile(filepath.Join(h.Dir, filepath.FromSlash(rel)))
	require.NoError(h.T, err)
	return string(data)
}

// Stage and Prime return paths inside the shared areas.
func (h *Harness) Stage(rel string) string {
	return filepath.Join(h.App.Layout().Stage(), filepath.FromSlash(rel))
}

func (h *Harness) Prime(rel string) string {
	return filepath.Join(h.App.Layout().Prime(), filepath.FromSlash(rel))
}
