// Package router resolves request URIs against an ordered route table.
//
// A route pattern is a "/"-separated list of segments. A segment is either
// a literal or a named parameter (":id"). The final segment may carry an
// extension, either literal ("feed.rss") or a parameter ("posts.:format").
//
//	routes := router.Table{
//		{Pattern: "users/:id.json", Defaults: map[string]any{"action": "users/json"}},
//		{Pattern: "users/:id", Defaults: map[string]any{"action": "users/show"}},
//	}
//	params, err := router.Resolve("users/42.json", nil, routes, router.Options{})
//	// params: action=users/json id=42
//
// The first route that binds an "action" parameter wins. When no route
// matches, the whole path becomes the action and the URI extension, or the
// default context, becomes the context parameter.
package router
