package testutil

import "github.com/vk/snapforge/internal/registry"

// SimpleModule is a test helper for registering a single plugin under a
// chosen name.
type SimpleModule struct {
	Name   string
	Plugin *registry.RegisteredPlugin
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.Name != "" && m.Plugin != nil {
		r.RegisterPlugin(m.Name, m.Plugin)
	}
}
