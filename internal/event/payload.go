package event

import (
	"github.com/dshills/atomik/internal/config"
)

// Payload is the mutable context handed to every listener of one Fire call.
// Each checkpoint fills the fields relevant to it and reads them back after
// firing.
type Payload struct {
	// Cancel aborts the remaining phases at cancellable checkpoints.
	Cancel bool

	URI            string
	Params         map[string]any
	AllowPluggable bool

	Action string
	View   string
	Render bool

	// Content is the rendered output at render and output checkpoints.
	Content  string
	Filename string
	Vars     map[string]any

	Plugin string
	Config map[string]any

	Err     error
	Success bool

	// Store is the request's configuration store.
	Store *config.Store

	// Extra carries values for events without a dedicated field.
	Extra map[string]any
}

// NewPayload returns a payload bound to a store.
func NewPayload(store *config.Store) *Payload {
	return &Payload{Store: store}
}
