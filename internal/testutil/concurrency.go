package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/snapforge/internal/fsutil"
	"github.com/vk/snapforge/internal/registry"
)

// SleeperModule registers the "sleeper" plugin: it dumps the build tree
// like the dump plugin after sleeping, and records when each part built.
type SleeperModule struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
}

// NewSleeperModule creates a new sleeper module for testing.
func NewSleeperModule(sleep time.Duration) *SleeperModule {
	return &SleeperModule{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
	}
}

// Record returns the build record of part.
func (m *SleeperModule) Record(part string) (ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ExecutionTimes[part]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *r, true
}

type sleeperPlugin struct {
	registry.SourcePuller
	m *SleeperModule
}

func (p sleeperPlugin) Build(ctx context.Context, env *registry.Env) error {
	start := time.Now()
	select {
	case <-time.After(p.m.sleepDuration):
	case <-ctx.Done():
		return ctx.Err()
	}
	end := time.Now()

	p.m.mu.Lock()
	p.m.ExecutionTimes[env.Part.Name] = &ExecutionRecord{Start: start, End: end}
	p.m.mu.Unlock()
	return fsutil.CopyTree(env.BuildDir, env.InstallDir)
}

// Register registers the "sleeper" plugin.
func (m *SleeperModule) Register(r *registry.Registry) {
	r.RegisterPlugin("sleeper", &registry.RegisteredPlugin{
		New: func() registry.Plugin { return sleeperPlugin{m: m} },
	})
}
