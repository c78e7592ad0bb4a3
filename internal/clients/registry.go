package clients

import (
	"fmt"
	"sync"
)

// Registry tracks available providers in registration order. The order
// defines fallback priority when building chains.
type Registry struct {
	sources map[string]DataSource
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]DataSource),
	}
}

// Register adds a provider. Registering the same name twice is an error;
// provider wiring is static and a duplicate means a DI mistake.
func (r *Registry) Register(source DataSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := source.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.sources[name] = source
	r.order = append(r.order, name)
	return nil
}

// Get returns a provider by name
func (r *Registry) Get(name string) (DataSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[name]
	return source, ok
}

// Names returns all registered provider names in priority order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns all registered providers in priority order
func (r *Registry) All() []DataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DataSource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}
