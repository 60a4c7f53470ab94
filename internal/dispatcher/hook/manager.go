package hook

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// chain is a list of hooks kept in run order.
type chain[H Hook] []H

// with returns the chain with h added, or substituted for the hook of
// the same name, sorted by priority.
func (c chain[H]) with(h H, descending bool) chain[H] {
	if i := c.index(h.Name()); i >= 0 {
		c[i] = h
	} else {
		c = append(c, h)
	}
	slices.SortStableFunc(c, func(a, b H) int {
		if descending {
			return cmp.Compare(b.Priority(), a.Priority())
		}
		return cmp.Compare(a.Priority(), b.Priority())
	})
	return c
}

func (c chain[H]) index(name string) int {
	return slices.IndexFunc(c, func(h H) bool { return h.Name() == name })
}

func (c chain[H]) without(name string) (chain[H], bool) {
	i := c.index(name)
	if i < 0 {
		return c, false
	}
	return slices.Delete(c, i, i+1), true
}

func (c chain[H]) names() []string {
	names := make([]string, len(c))
	for i, h := range c {
		names[i] = h.Name()
	}
	return names
}

// Manager holds the dispatch hooks. Pre-hooks run highest priority
// first, post-hooks lowest first, so a high priority hook wraps the
// others.
type Manager struct {
	mu   sync.RWMutex
	pre  chain[PreDispatchHook]
	post chain[PostDispatchHook]
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	return &Manager{}
}

// RegisterPre adds a pre-dispatch hook.
func (m *Manager) RegisterPre(h PreDispatchHook) {
	m.mu.Lock()
	m.pre = m.pre.with(h, true)
	m.mu.Unlock()
}

// RegisterPost adds a post-dispatch hook.
func (m *Manager) RegisterPost(h PostDispatchHook) {
	m.mu.Lock()
	m.post = m.post.with(h, false)
	m.mu.Unlock()
}

// Register adds h as a pre-hook, a post-hook or both, depending on the
// interfaces it implements.
func (m *Manager) Register(h Hook) {
	if pre, ok := h.(PreDispatchHook); ok {
		m.RegisterPre(pre)
	}
	if post, ok := h.(PostDispatchHook); ok {
		m.RegisterPost(post)
	}
}

// Unregister removes the hooks called name.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fromPre, fromPost bool
	m.pre, fromPre = m.pre.without(name)
	m.post, fromPost = m.post.without(name)
	return fromPre || fromPost
}

// RunPreDispatch runs the pre-hooks. It stops at the first one that fails
// or returns false.
func (m *Manager) RunPreDispatch(ctx context.Context, hc *Context) (bool, error) {
	m.mu.RLock()
	hooks := slices.Clone(m.pre)
	m.mu.RUnlock()

	for _, h := range hooks {
		ok, err := h.PreDispatch(ctx, hc)
		if err != nil {
			return false, fmt.Errorf("pre-dispatch hook %s: %w", h.Name(), err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// RunPostDispatch runs the post-hooks, stopping at the first error.
func (m *Manager) RunPostDispatch(ctx context.Context, hc *Context) error {
	m.mu.RLock()
	hooks := slices.Clone(m.post)
	m.mu.RUnlock()

	for _, h := range hooks {
		if err := h.PostDispatch(ctx, hc); err != nil {
			return fmt.Errorf("post-dispatch hook %s: %w", h.Name(), err)
		}
	}
	return nil
}

// PreHookNames returns the pre-hook names in run order.
func (m *Manager) PreHookNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pre.names()
}

// PostHookNames returns the post-hook names in run order.
func (m *Manager) PostHookNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.post.names()
}
