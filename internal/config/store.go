package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dshills/atomik/internal/config/layer"
)

// Selector resolves a namespaced path. It receives the part after the
// "name:" prefix and the default passed to Get.
type Selector func(rest string, def any) any

var (
	selectorPath = regexp.MustCompile(`^([a-z]+):(.*)$`)
	selectorName = regexp.MustCompile(`^[a-z]+$`)
)

// Store is the hierarchical configuration and request state tree.
type Store struct {
	mu        sync.RWMutex
	data      map[string]any
	baseline  map[string]any
	selectors map[string]Selector
}

// SetOption configures Set, Merge and Add.
type SetOption func(*setOptions)

type setOptions struct {
	baseline       bool
	noDimensionize bool
}

// WithBaseline also records the value in the baseline snapshot.
func WithBaseline() SetOption {
	return func(o *setOptions) {
		o.baseline = true
	}
}

// WithoutDimensionize keeps keys containing "/" as literal keys on Merge.
func WithoutDimensionize() SetOption {
	return func(o *setOptions) {
		o.noDimensionize = true
	}
}

func applySetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data:      make(map[string]any),
		baseline:  make(map[string]any),
		selectors: make(map[string]Selector),
	}
}

// NewWithBaseline creates a store whose live tree and baseline both start
// from m.
func NewWithBaseline(m map[string]any) *Store {
	s := New()
	_ = s.Merge(m, WithBaseline())
	return s
}

// Get returns the value at path, or def when it is missing or nil.
// Namespaced paths ("name:rest") go to the registered selector.
func (s *Store) Get(path string, def any) any {
	if sel, rest, ok := s.selector(path); ok {
		return sel(rest, def)
	}

	val, ok := s.Lookup(path)
	if !ok || val == nil {
		return def
	}
	return val
}

// Lookup returns a copy of the value at path and whether it exists.
func (s *Store) Lookup(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := layer.GetByPath(s.data, path)
	if !ok {
		return nil, false
	}
	return cloneValue(val), true
}

// Has reports whether path exists in the live tree.
func (s *Store) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := layer.GetByPath(s.data, path)
	return ok
}

// Set assigns v at path, creating intermediate nodes. A scalar met on the
// way is replaced by a node.
func (s *Store) Set(path string, v any, opts ...SetOption) error {
	if len(layer.SplitPath(path)) == 0 {
		return &KeyError{Op: "set", Path: path, Err: ErrInvalidArgument}
	}
	o := applySetOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	layer.SetByPath(s.data, path, cloneValue(v))
	if o.baseline {
		layer.SetByPath(s.baseline, path, cloneValue(v))
	}
	return nil
}

// Merge recursively merges m into the live tree. Keys containing "/" are
// expanded into nested nodes first. Incoming values win on conflicts.
func (s *Store) Merge(m map[string]any, opts ...SetOption) error {
	if m == nil {
		return &KeyError{Op: "merge", Err: ErrInvalidArgument}
	}
	o := applySetOptions(opts)
	if !o.noDimensionize {
		m = layer.Dimensionize(m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = layer.DeepMerge(s.data, m)
	if o.baseline {
		s.baseline = layer.DeepMerge(s.baseline, m)
	}
	return nil
}

// Add appends v to the value at path. A missing key is set as is, a
// scalar becomes the first element of a list and maps merge recursively
// with the same rule.
func (s *Store) Add(path string, v any, opts ...SetOption) error {
	if len(layer.SplitPath(path)) == 0 {
		return &KeyError{Op: "add", Path: path, Err: ErrInvalidArgument}
	}
	o := applySetOptions(opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := addAt(s.data, path, v); err != nil {
		return err
	}
	if o.baseline {
		return addAt(s.baseline, path, v)
	}
	return nil
}

// AddMap is the mapping form of Add.
func (s *Store) AddMap(m map[string]any, opts ...SetOption) error {
	if m == nil {
		return &KeyError{Op: "add", Err: ErrInvalidArgument}
	}
	o := applySetOptions(opts)
	if !o.noDimensionize {
		m = layer.Dimensionize(m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, val := range m {
		if err := addAt(s.data, key, val); err != nil {
			return err
		}
		if o.baseline {
			if err := addAt(s.baseline, key, val); err != nil {
				return err
			}
		}
	}
	return nil
}

func addAt(data map[string]any, path string, v any) error {
	existing, ok := layer.GetByPath(data, path)
	if !ok || existing == nil {
		layer.SetByPath(data, path, cloneValue(v))
		return nil
	}

	merged, ok := layer.AppendValue(existing, cloneValue(v))
	if !ok {
		return &KeyError{Op: "add", Path: path, Err: fmt.Errorf("%w: cannot append %T to %T", ErrInvalidArgument, v, existing)}
	}
	layer.SetByPath(data, path, merged)
	return nil
}

// Delete removes path from the live tree and returns the removed value.
func (s *Store) Delete(path string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := layer.DeleteByPath(s.data, path)
	if !ok {
		return nil, &KeyError{Op: "delete", Path: path, Err: ErrKeyNotFound}
	}
	return val, nil
}

// Reset merges the baseline over the live tree. Keys the baseline does not
// know about are left untouched.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = layer.DeepMerge(s.data, s.baseline)
}

// Snapshot replaces the baseline with a copy of the live tree.
func (s *Store) Snapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseline = layer.Clone(s.data)
}

// RegisterSelector installs a resolver for paths of the form "ns:rest".
func (s *Store) RegisterSelector(ns string, sel Selector) error {
	if !selectorName.MatchString(ns) || sel == nil {
		return &KeyError{Op: "register selector", Path: ns, Err: ErrInvalidArgument}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.selectors[ns]; exists {
		return &KeyError{Op: "register selector", Path: ns, Err: ErrSelectorExists}
	}
	s.selectors[ns] = sel
	return nil
}

func (s *Store) selector(path string) (Selector, string, bool) {
	m := selectorPath.FindStringSubmatch(path)
	if m == nil {
		return nil, "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sel, ok := s.selectors[m[1]]
	return sel, m[2], ok
}

// Clone returns an independent copy of the store, selectors included.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Store{
		data:      layer.Clone(s.data),
		baseline:  layer.Clone(s.baseline),
		selectors: make(map[string]Selector, len(s.selectors)),
	}
	for k, v := range s.selectors {
		c.selectors[k] = v
	}
	return c
}

// All returns a deep copy of the live tree.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return layer.Clone(s.data)
}

// Baseline returns a deep copy of the baseline tree.
func (s *Store) Baseline() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return layer.Clone(s.baseline)
}

// String returns the value at path as a string. Scalars are formatted;
// missing values, nil, false and structures give def.
func (s *Store) String(path, def string) string {
	return ToString(s.Get(path, nil), def)
}

// Bool returns the truthiness of the value at path, or def when missing.
func (s *Store) Bool(path string, def bool) bool {
	val, ok := s.Lookup(path)
	if !ok || val == nil {
		return def
	}
	return Truthy(val)
}

// Strings returns the value at path as a list of strings. A single string
// becomes a one-element list; false and missing values give nil.
func (s *Store) Strings(path string) []string {
	return ToStrings(s.Get(path, nil))
}

// Decode decodes the node at path into out using mapstructure.
// A missing node leaves out untouched.
func (s *Store) Decode(path string, out any) error {
	val, ok := s.Lookup(path)
	if !ok {
		return nil
	}
	return Decode(val, out)
}

// Decode decodes a configuration value into out, converting scalars where
// the target type calls for it.
func Decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// ToString formats a scalar configuration value.
func ToString(v any, def string) string {
	switch val := v.(type) {
	case nil:
		return def
	case string:
		return val
	case bool:
		if !val {
			return def
		}
		return "1"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return def
	}
}

// ToStrings converts a string or list value into a list of strings.
func ToStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return append([]string(nil), val...)
	case bool:
		return nil
	}

	items, ok := layer.ToList(v)
	if !ok {
		if s := ToString(v, ""); s != "" {
			return []string{s}
		}
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := ToString(item, ""); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Truthy reports whether a configuration value counts as enabled.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch strings.ToLower(val) {
		case "", "0", "false", "no", "off":
			return false
		}
		return true
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case map[string]any:
		return len(val) > 0
	}
	if items, ok := layer.ToList(v); ok {
		return len(items) > 0
	}
	return true
}

func cloneValue(v any) any {
	return layer.CloneValue(v)
}
