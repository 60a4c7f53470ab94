// Package config provides the configuration store shared by every part of
// the request pipeline.
//
// A Store is a tree of nested maps addressed with slash paths such as
// "views/contexts/json/prefix". Writes auto-create intermediate nodes and
// mappings are merged recursively. The store keeps two trees:
//
//	┌──────────────┐  Reset()  ┌──────────────┐
//	│   baseline   │ ────────▶ │     live     │
//	└──────────────┘           └──────────────┘
//	  written by Set/Merge       read and written
//	  with WithBaseline()        by the pipeline
//
// The baseline is usually captured at startup; Reset re-merges it over the
// live tree when a pluggable application takes over a request.
//
// # Selectors
//
// A path of the form "name:rest" is not looked up in the tree. It is handed
// to the Selector registered for "name":
//
//	store.RegisterSelector("flash", func(label string, def any) any { ... })
//	msgs := store.Get("flash:error", nil)
//
// # Concurrency
//
// A Store is safe for concurrent use, but the pipeline gives every request
// its own Store (see Clone) so requests never observe each other's state.
package config
