package dispatcher

import (
	"cmp"
	"context"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/dshills/atomik/internal/dispatcher/handler"
)

// Registry maps action names to Go handlers. A registered handler takes
// precedence over an action script of the same name, and the method
// variant "name.method" over the plain name, as with scripts.
type Registry struct {
	mu      sync.RWMutex
	actions map[string][]handler.Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string][]handler.Handler)}
}

func actionKey(name string) string {
	return strings.Trim(name, "/")
}

// Register adds h for the action name ("users", "admin/users.post").
// When several handlers share a name the highest priority one runs; ties
// go to the earliest registration.
func (r *Registry) Register(name string, h handler.Handler) {
	key := actionKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.actions[key], h)
	slices.SortStableFunc(list, func(a, b handler.Handler) int {
		return cmp.Compare(b.Priority(), a.Priority())
	})
	r.actions[key] = list
}

// RegisterFunc registers fn as a handler of the action name.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, hc *handler.Context) (map[string]any, error)) {
	r.Register(name, handler.NewHandlerFunc(fn))
}

// Remove drops h from the action name, or every handler of it when h is
// nil. It reports whether anything was removed.
func (r *Registry) Remove(name string, h handler.Handler) bool {
	key := actionKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.actions[key]
	if !ok {
		return false
	}
	if h != nil {
		kept := lo.Reject(list, func(x handler.Handler, _ int) bool { return sameHandler(x, h) })
		if len(kept) == len(list) {
			return false
		}
		list = kept
	} else {
		list = nil
	}
	if len(list) == 0 {
		delete(r.actions, key)
	} else {
		r.actions[key] = list
	}
	return true
}

// sameHandler compares handlers by identity. Map and func handlers such
// as handler.Vars cannot be compared with ==.
func sameHandler(a, b handler.Handler) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Func, reflect.Pointer, reflect.Slice, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return va.Comparable() && va.Equal(vb)
}

// Get returns the handler that runs for the action name, or nil.
func (r *Registry) Get(name string) handler.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if list := r.actions[actionKey(name)]; len(list) > 0 {
		return list[0]
	}
	return nil
}

// Has reports whether a handler is registered for the action name.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Actions returns the registered action names, sorted.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.actions)
	slices.Sort(names)
	return names
}
