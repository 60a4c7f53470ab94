// Package event provides the synchronous, priority-ordered event bus that
// exposes every extension point of the request pipeline.
//
// Listeners are registered against an event name at an integer priority
// (50 by default). Priorities are slots: registering on an occupied slot
// moves the listener to the next free slot upwards, or downwards when the
// Before option is given. Listeners registered at the same requested
// priority therefore run in registration order.
//
// Fire calls listeners in ascending slot order on the caller's goroutine,
// passing the same *Payload to each one. The payload is the only channel
// back to the pipeline: a listener cancels the remaining phases of a
// cancellable checkpoint by setting Payload.Cancel, and rewrites the URI,
// parameters or content by assigning the corresponding fields.
//
//	bus.Listen(events.DispatchStart, event.Func("maintenance", func(ctx context.Context, p *event.Payload) any {
//		p.Cancel = true
//		return nil
//	}))
//
// Registration is expected to happen while the application starts; once
// requests are being served the registry is read-mostly.
package event
