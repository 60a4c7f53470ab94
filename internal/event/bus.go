package event

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/atomik/internal/logging"
)

// Bus is the named, priority-ordered listener registry.
// It is safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Name]map[int]Listener
	log       *logging.Logger
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		listeners: make(map[Name]map[int]Listener),
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Listen registers l for event and returns the slot it was given.
// An occupied slot is probed upwards, or downwards with Before, until a
// free one is found.
func (b *Bus) Listen(event Name, l Listener, opts ...ListenOption) (int, error) {
	if err := validListener(event, l); err != nil {
		return 0, err
	}

	cfg := listenConfig{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(event, l, cfg), nil
}

func validListener(event Name, l Listener) error {
	if event == "" {
		return ErrInvalidEvent
	}
	if l == nil {
		return fmt.Errorf("listen %s: %w", event, ErrNotInvocable)
	}
	return nil
}

// insert places l in the first free slot from cfg.priority. The caller
// holds b.mu.
func (b *Bus) insert(event Name, l Listener, cfg listenConfig) int {
	slots, ok := b.listeners[event]
	if !ok {
		slots = make(map[int]Listener)
		b.listeners[event] = slots
	}

	p := cfg.priority
	for {
		if _, taken := slots[p]; !taken {
			break
		}
		if cfg.before {
			p--
		} else {
			p++
		}
	}
	slots[p] = l

	b.log.Debug("listener %s registered on %s at %d", l.Name(), event, p)
	return p
}

// ListenAll registers an explicit list of registrations in order. Nothing
// is registered when any entry is invalid.
func (b *Bus) ListenAll(regs []Registration) error {
	for _, r := range regs {
		if err := validListener(r.Event, r.Listener); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range regs {
		b.insert(r.Event, r.Listener, listenConfig{priority: r.Priority, before: r.Before})
	}
	return nil
}

// Remove unregisters the first listener named name from event.
func (b *Bus) Remove(event Name, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	slots := b.listeners[event]
	for _, p := range sortedSlots(slots) {
		if slots[p].Name() == name {
			delete(slots, p)
			return true
		}
	}
	return false
}

// Has reports whether event has at least one listener.
func (b *Bus) Has(event Name) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[event]) > 0
}

// Listeners returns the listeners of event in invocation order.
func (b *Bus) Listeners(event Name) []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()

	slots := b.listeners[event]
	out := make([]Listener, 0, len(slots))
	for _, p := range sortedSlots(slots) {
		out = append(out, slots[p])
	}
	return out
}

// Fire calls every listener of event in ascending slot order with the same
// payload. Listeners registered while firing are not called for this event.
// A nil payload is replaced by an empty one.
func (b *Bus) Fire(ctx context.Context, event Name, p *Payload) Results {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil {
		p = &Payload{}
	}

	listeners := b.Listeners(event)
	if len(listeners) == 0 {
		return nil
	}

	b.log.Debug("firing %s to %d listener(s)", event, len(listeners))

	results := make(Results, 0, len(listeners))
	for _, l := range listeners {
		results = append(results, Result{Listener: l.Name(), Value: l.Handle(ctx, p)})
	}
	return results
}

// FireString fires event and joins the stringified results.
func (b *Bus) FireString(ctx context.Context, event Name, p *Payload) string {
	return b.Fire(ctx, event, p).Join()
}

func sortedSlots(slots map[int]Listener) []int {
	keys := make([]int, 0, len(slots))
	for p := range slots {
		keys = append(keys, p)
	}
	slices.Sort(keys)
	return keys
}
