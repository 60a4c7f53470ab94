package plugin

import (
	"context"

	"github.com/dshills/atomik/internal/event"
)

// Module is a plugin compiled into the binary. Registered modules are
// loaded by name like file plugins and take precedence over them.
type Module interface {
	Name() string
}

// Starter is implemented by modules with a start routine. Returning false
// skips the automatic listener registration.
type Starter interface {
	Start(ctx context.Context, cfg map[string]any) bool
}

// ListenerProvider declares the module's event listeners.
type ListenerProvider interface {
	Listeners() []event.Registration
}

// MethodProvider declares methods callable through the Methods registry.
type MethodProvider interface {
	Methods() map[string]MethodFunc
}

// DefaultsProvider supplies default configuration. Supplied values win.
type DefaultsProvider interface {
	Defaults() map[string]any
}
