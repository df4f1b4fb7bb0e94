package bot

import (
	"log/slog"
	"slices"
	"sync"
)

// Registry holds registered modules in registration order. Module names are
// unique: the bot host merges every module's handlers into shared maps, so a
// module registered twice would answer each interaction twice.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

// NewRegistry creates a new module registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a module to the registry and reports whether it was added.
// A module whose name is already registered is ignored.
func (r *Registry) Register(m Module) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.ContainsFunc(r.modules, func(existing Module) bool { return existing.Name() == m.Name() }) {
		slog.Warn("ignoring duplicate module registration", "module", m.Name())
		return false
	}
	r.modules = append(r.modules, m)
	return true
}

// Modules returns a snapshot of all registered modules.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// Global registry for module self-registration via init()
var globalRegistry = NewRegistry()

// Register adds a module to the global registry.
// This is typically called from module init() functions.
func Register(m Module) {
	globalRegistry.Register(m)
}

// Modules returns all modules from the global registry.
func Modules() []Module {
	return globalRegistry.Modules()
}

// ResetGlobalRegistry resets the global registry.
// This is intended for testing purposes only.
func ResetGlobalRegistry() {
	globalRegistry = NewRegistry()
}
