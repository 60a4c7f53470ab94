package event

import "context"

// Name identifies an event, e.g. "Atomik::Dispatch::Start".
type Name string

// String returns the event name.
func (n Name) String() string {
	return string(n)
}

// Listener handles an event. Name identifies the listener in Results.
type Listener interface {
	Name() string
	Handle(ctx context.Context, p *Payload) any
}

// HandlerFunc is the function form of a listener body.
type HandlerFunc func(ctx context.Context, p *Payload) any

type funcListener struct {
	name string
	fn   HandlerFunc
}

// Func wraps fn as a named Listener. A nil fn yields a nil Listener, which
// Listen rejects with ErrNotInvocable.
func Func(name string, fn HandlerFunc) Listener {
	if fn == nil {
		return nil
	}
	return &funcListener{name: name, fn: fn}
}

func (l *funcListener) Name() string { return l.name }

func (l *funcListener) Handle(ctx context.Context, p *Payload) any { return l.fn(ctx, p) }

// Registration is one (event, listener) pair declared by a module.
type Registration struct {
	Event    Name
	Listener Listener
	Priority int
	Before   bool
}

// On builds a Registration at the default priority.
func On(event Name, l Listener) Registration {
	return Registration{Event: event, Listener: l, Priority: DefaultPriority}
}
