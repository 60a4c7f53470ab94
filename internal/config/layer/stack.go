package layer

import (
	"slices"
	"sort"
	"sync"
)

// Source identifies where a startup layer came from. Later sources
// override earlier ones.
type Source uint8

const (
	SourceBuiltin Source = iota
	SourceFile
	SourceEnv
	SourceArgs
)

var sourceNames = [...]string{"builtin", "file", "env", "args"}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return "unknown"
}

// Layer is one startup configuration source.
type Layer struct {
	Name   string
	Source Source

	// Order ranks layers of the same source; higher wins. Configuration
	// files use their position on the command line.
	Order int

	// Data is dimensionized.
	Data map[string]any
}

// New creates a layer, expanding slash keys in data.
func New(name string, source Source, data map[string]any) *Layer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Layer{Name: name, Source: source, Data: Dimensionize(data)}
}

func (l *Layer) before(o *Layer) bool {
	if l.Source != o.Source {
		return l.Source < o.Source
	}
	return l.Order < o.Order
}

// Stack holds the startup layers, lowest first.
type Stack struct {
	mu     sync.RWMutex
	layers []*Layer
}

// NewStack creates a stack holding layers.
func NewStack(layers ...*Layer) *Stack {
	s := &Stack{}
	for _, l := range layers {
		s.Push(l)
	}
	return s
}

// Push inserts l above every layer it does not rank below, so a layer
// pushed later wins over an equal one.
func (s *Stack) Push(l *Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.layers), func(i int) bool { return l.before(s.layers[i]) })
	s.layers = slices.Insert(s.layers, i, l)
}

// Remove drops the layer called name.
func (s *Stack) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.layers, func(l *Layer) bool { return l.Name == name })
	if i < 0 {
		return false
	}
	s.layers = slices.Delete(s.layers, i, i+1)
	return true
}

// Layers returns the layers, lowest first.
func (s *Stack) Layers() []*Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.layers)
}

// Merge folds the layers into a fresh map.
func (s *Stack) Merge() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any)
	for _, l := range s.layers {
		DeepMerge(out, l.Data)
	}
	return out
}

// Lookup returns the effective value at path and the layer providing it.
func (s *Stack) Lookup(path string) (any, *Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.layers) - 1; i >= 0; i-- {
		if v, ok := GetByPath(s.layers[i].Data, path); ok {
			return v, s.layers[i], true
		}
	}
	return nil, nil, false
}

// Origin names the layer providing path, or "" when none does.
func (s *Stack) Origin(path string) string {
	if _, l, ok := s.Lookup(path); ok {
		return l.Name
	}
	return ""
}
