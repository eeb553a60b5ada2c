package registry

import (
	"fmt"
	"log/slog"
	"sort"
)

// Module is the interface that all built-in modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered plugins of a single application instance.
type Registry struct {
	plugins map[string]*RegisteredPlugin
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{plugins: make(map[string]*RegisteredPlugin)}
}

// RegisteredPlugin holds the Go parts of a plugin.
type RegisteredPlugin struct {
	// NewOptions returns a pointer to the plugin's option struct. Fields
	// tagged `cty:"name"` receive the part's options block attributes; a
	// field also tagged `option:"required"` must be set. Nil means the
	// plugin accepts no options.
	NewOptions func() any
	// New instantiates the plugin.
	New func() Plugin
}

// RegisterPlugin registers a plugin under name. Registering the same name
// twice is a programmer error.
func (r *Registry) RegisterPlugin(name string, p *RegisteredPlugin) {
	if _, exists := r.plugins[name]; exists {
		panic(fmt.Sprintf("plugin with name '%s' already registered", name))
	}
	slog.Debug("Registering plugin.", "name", name)
	r.plugins[name] = p
}

// Lookup returns the plugin registered under name.
func (r *Registry) Lookup(name string) (*RegisteredPlugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// Names lists the registered plugin names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
