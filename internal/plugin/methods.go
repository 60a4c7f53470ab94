package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MethodFunc is a method contributed by a plugin.
type MethodFunc func(ctx context.Context, args ...any) (any, error)

// Methods is the registry of plugin-provided methods, the explicit
// replacement for calling undefined methods on the application.
type Methods struct {
	mu      sync.RWMutex
	methods map[string]MethodFunc
}

// NewMethods creates an empty registry.
func NewMethods() *Methods {
	return &Methods{methods: make(map[string]MethodFunc)}
}

// Register adds fn under name. A later registration replaces an earlier one.
func (m *Methods) Register(name string, fn MethodFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register %q: %w", name, ErrNotInvocable)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[name] = fn
	return nil
}

// Unregister drops name and reports whether it was registered.
func (m *Methods) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.methods[name]
	delete(m.methods, name)
	return ok
}

// Has reports whether name is registered.
func (m *Methods) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.methods[name]
	return ok
}

// Call invokes the method registered under name.
func (m *Methods) Call(ctx context.Context, name string, args ...any) (any, error) {
	m.mu.RLock()
	fn, ok := m.methods[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}
	return fn(ctx, args...)
}

// Names returns the registered method names, sorted.
func (m *Methods) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
