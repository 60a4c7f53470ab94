// Package dispatcher runs a request through routing, action execution,
// rendering and output.
//
// A Dispatcher serves one request. It shares the event bus, the plugin
// loader, the handler registry, the hooks and the script runner with the
// other dispatchers of an application, and owns a per-request clone of
// the configuration store.
//
// # Phases
//
// Dispatch moves through these phases, firing the named events:
//
//  1. Atomik::Dispatch::Start (cancellable)
//  2. URI discovery from the trigger parameter, then routing between
//     Atomik::Router::Start and Atomik::Router::End
//  3. Pluggable application check; a match hands over to
//     DispatchPluggableApplication
//  4. Atomik::Dispatch::Uri (cancellable)
//  5. HTTP method and view context resolution
//  6. Atomik::Dispatch::Before (cancellable), then the pre-dispatch hooks
//  7. Execute, then the layouts in reverse declaration order
//  8. Atomik::Output::Before, output, Atomik::Output::After
//  9. Atomik::Dispatch::After, then the post-dispatch hooks
//
// A cancelled phase ends the request as handled. Route misses, rejected
// actions and unknown actions are reported as not handled.
//
// # Actions
//
// An action is a Go handler registered in the Registry, or a Lua script
// <action>.lua in dirs/actions, plus an optional view <action><ext> in
// dirs/views. A method-specific handler, registered as "users.post" or
// written as users.post.lua, runs after the general one with its
// variables:
//
//	-- app/actions/users.lua
//	users = atomik.call("db.query", "select * from users")
//	title = "Users"
//
//	-- app/actions/users.post.lua
//	atomik.flash("saved")
//	atomik.no_render()
//
// Variables whose name starts with an underscore are private to the
// handler.
//
// # Controls
//
// Handlers steer the rendering through NoRender, SetView and
// DisableLayout, available to Lua as atomik.no_render, atomik.set_view and
// atomik.disable_layout.
package dispatcher
