// Package events names the checkpoints fired by the request pipeline.
package events

import "github.com/dshills/atomik/internal/event"

// Application lifecycle.
const (
	// Start is fired before a request is dispatched. Cancellable.
	Start event.Name = "Atomik::Start"
	// End is fired when a request finishes; Payload.Success reports the outcome.
	End event.Name = "Atomik::End"
	// Error is fired with Payload.Err when the fault boundary catches an error.
	Error event.Name = "Atomik::Error"
	// NotFound is fired before the not-found page is written.
	NotFound event.Name = "Atomik::404"
)

// Dispatch checkpoints.
const (
	// DispatchStart carries URI and AllowPluggable. Cancellable.
	DispatchStart event.Name = "Atomik::Dispatch::Start"
	// DispatchURI carries URI and the routed Params. Cancellable.
	DispatchURI event.Name = "Atomik::Dispatch::Uri"
	// DispatchBefore is the last checkpoint before execution. Cancellable.
	DispatchBefore event.Name = "Atomik::Dispatch::Before"
	// DispatchAfter is fired once the output has been written.
	DispatchAfter event.Name = "Atomik::Dispatch::After"
	// DispatchPluginApplication is fired before a pluggable application runs. Cancellable.
	DispatchPluginApplication event.Name = "Atomik::DispatchPluginApplication"
)

// Routing.
const (
	// RouterStart carries URI and the caller-supplied Params.
	RouterStart event.Name = "Atomik::Router::Start"
	// RouterEnd carries URI and the resolved Params.
	RouterEnd event.Name = "Atomik::Router::End"
)

// Action execution.
const (
	// ExecuteStart carries Action, View and Render; clearing Action aborts.
	ExecuteStart event.Name = "Atomik::Execute::Start"
	// ExecuteBefore is fired once the handlers and view are resolved.
	ExecuteBefore event.Name = "Atomik::Execute::Before"
	// ExecuteAfter carries the handler Vars.
	ExecuteAfter event.Name = "Atomik::Execute::After"
)

// Rendering and output.
const (
	RenderStart      event.Name = "Atomik::Render::Start"
	RenderBefore     event.Name = "Atomik::Render::Before"
	RenderAfter      event.Name = "Atomik::Render::After"
	RenderFileBefore event.Name = "Atomik::RenderFile::Before"
	RenderFileAfter  event.Name = "Atomik::RenderFile::After"
	RenderLayout     event.Name = "Atomik::RenderLayout"
	OutputBefore     event.Name = "Atomik::Output::Before"
	OutputAfter      event.Name = "Atomik::Output::After"
)

// Plugin loading.
const (
	// PluginBefore carries Plugin and Config; clearing Plugin vetoes the load.
	PluginBefore event.Name = "Atomik::Plugin::Before"
	// PluginAfter is fired once a plugin is loaded.
	PluginAfter event.Name = "Atomik::Plugin::After"
)

// All lists every pipeline event, in pipeline order.
var All = []event.Name{
	Start, DispatchStart, RouterStart, RouterEnd, DispatchURI, DispatchPluginApplication,
	DispatchBefore, ExecuteStart, ExecuteBefore, ExecuteAfter,
	RenderStart, RenderBefore, RenderFileBefore, RenderFileAfter, RenderAfter, RenderLayout,
	OutputBefore, OutputAfter, DispatchAfter, NotFound, Error, End,
	PluginBefore, PluginAfter,
}
