package modifier

import (
	"fmt"
	"sync"
)

// Registry maps (method, uri-path) to an ordered chain of Modifiers,
// widened to a slice per key so more than one module can be chained on a
// single path.
type Registry struct {
	mu     sync.RWMutex
	chains map[key][]Modifier
}

type key struct {
	method string
	path   string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{chains: make(map[key][]Modifier)}
}

// Register appends m to the chain serving method+path. Registration order
// is preserved and governs the handler's first-non-204-wins tie-break rule.
func (r *Registry) Register(method, path string, m Modifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{method: method, path: path}
	r.chains[k] = append(r.chains[k], m)
}

// Chain returns the modifiers registered for method+path, in registration
// order, and whether any are registered at all.
func (r *Registry) Chain(method, path string) ([]Modifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[key{method: method, path: path}]
	return c, ok
}

// HasMethod reports whether any path is registered for method, used to
// distinguish a 404 (method supported, path unknown) from a 405 (method
// itself unsupported).
func (r *Registry) HasMethod(method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := range r.chains {
		if k.method == method {
			return true
		}
	}
	return false
}

// Paths returns every distinct URI path registered, for OPTIONS discovery
// and startup logging.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for k := range r.chains {
		if !seen[k.path] {
			seen[k.path] = true
			out = append(out, k.path)
		}
	}
	return out
}

// Names returns the Name() of every modifier registered for method+path,
// in registration order, for the Service header of a path-scoped OPTIONS
// response.
func (r *Registry) Names(method, path string) []string {
	chain, _ := r.Chain(method, path)
	names := make([]string, len(chain))
	for i, m := range chain {
		names[i] = m.Name()
	}
	return names
}

// String renders the registry's contents for startup logging.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("modifier.Registry{%d chains}", len(r.chains))
}
