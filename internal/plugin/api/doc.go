// Package api exposes the application to Lua scripts as the "atomik"
// module.
//
// Every script run by the framework (actions, helpers, hook files and
// plugins) can use the module either through the global "atomik" or
// require("atomik"):
//
//	local title = atomik.get("app/title", "Untitled")
//	atomik.set("app/title", title .. " | Blog")
//	atomik.listen("Atomik::Dispatch::Start", function(p)
//	    if p.uri == "admin" then p.cancel = true end
//	end)
//
// The module is bound to a Context at install time. Request-scoped values,
// the request's Store and the dispatcher controls (no_render, set_view,
// disable_layout, execute, helper), travel in the context.Context of the
// running call, so a plugin loaded once at startup still reads and writes
// the store of the request that fired its listener.
package api
