package event

import (
	"github.com/dshills/atomik/internal/logging"
)

// DefaultPriority is the slot requested when no priority is given.
const DefaultPriority = 50

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l *logging.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.log = l.WithComponent("event")
		}
	}
}

// ListenOption configures a single registration.
type ListenOption func(*listenConfig)

type listenConfig struct {
	priority int
	before   bool
}

// WithPriority requests a priority slot. Lower slots run first.
func WithPriority(p int) ListenOption {
	return func(c *listenConfig) {
		c.priority = p
	}
}

// Before probes downwards for a free slot, so the listener runs before
// others registered at the same priority.
func Before() ListenOption {
	return func(c *listenConfig) {
		c.before = true
	}
}
