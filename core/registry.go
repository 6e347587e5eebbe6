package core

import "sync"

// Registry is the process-wide name-to-Capability catalog. Tools and agents
// share one namespace so callers never distinguish them.
//
// The registry is read-mostly after load: lookups take a read lock so many
// agent goroutines can resolve concurrently, while registration (including
// runtime self-extension through create_capability) is serialized against
// reads. Enumeration order is insertion order, which keeps model-facing
// capability lists stable across turns.
type Registry struct {
	mu    sync.RWMutex
	names []string
	caps  map[string]Capability
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register adds a capability. It fails with DuplicateNameError if the name is
// taken, leaving the existing entry untouched.
func (r *Registry) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if _, exists := r.caps[name]; exists {
		return &DuplicateNameError{Name: name}
	}
	r.caps[name] = c
	r.names = append(r.names, name)
	return nil
}

// Unregister removes a capability by name, reporting whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[name]; !exists {
		return false
	}
	delete(r.caps, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return true
}

// Get resolves a capability by name or returns NotFoundError. It never
// panics; resolution failures inside a model-driven loop must be convertible
// into tool-result text.
func (r *Registry) Get(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	if !ok {
		return nil, &NotFoundError{Kind: "capability", Name: name}
	}
	return c, nil
}

// Has reports whether a capability with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[name]
	return ok
}

// List returns all capabilities in insertion order. The returned slice is a
// snapshot safe for iteration while registrations continue.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.caps[name])
	}
	return out
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}
