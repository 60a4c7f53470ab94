// Package layer provides the tree primitives behind the configuration store
// and the stacking of startup configuration sources.
//
// Paths are slash separated ("views/contexts/html/prefix"). Startup
// sources are layers in a Stack; a layer from a later source overrides
// the values of earlier ones when the stack is merged into the store
// baseline.
package layer
