// Package plugin loads atomik plugins.
//
// A plugin is either a Go Module registered with the Loader or a Lua script
// found in the plugin directories:
//
//	app/plugins/Db.lua            single file plugin
//	app/plugins/Blog/Plugin.lua   directory plugin
//	app/plugins/Blog/libraries/   added to the require path
//	app/plugins/Blog/Application.lua  mounts the plugin as an application
//
// The entry script runs with a global config table and may return a table
// (or define a global <Name>Plugin table) with these optional fields:
//
//	return {
//	  defaults = { per_page = 10 },
//	  start = function(config) return true end,
//	  onAtomikDispatchStart = function(p) end,
//	  listeners = { { "Atomik::Render::After", function(p) end, 40 } },
//	  methods = { slugify = function(s) return s end },
//	}
//
// Returning false from start skips the listeners. Methods are callable from
// Go through Methods and from Lua through atomik.call.
//
// Loading fires Atomik::Plugin::Before, which may veto the load by clearing
// the plugin name, and Atomik::Plugin::After once the plugin is recorded.
package plugin
