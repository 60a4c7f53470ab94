package config

// ViewContext is the output profile selected by the context parameter.
type ViewContext struct {
	Name        string `mapstructure:"-"`
	Prefix      string `mapstructure:"prefix"`
	Layout      bool   `mapstructure:"layout"`
	ContentType string `mapstructure:"content-type"`
}

// LookupViewContext returns the configured profile for name. The second
// result is false when the context is not configured.
//
// Unset fields default to a prefix equal to the name, layouts enabled and
// text/html.
func (s *Store) LookupViewContext(name string) (ViewContext, bool, error) {
	vc := ViewContext{
		Name:        name,
		Prefix:      name,
		Layout:      true,
		ContentType: "text/html",
	}

	node, ok := s.Lookup(KeyContexts + "/" + name)
	if !ok {
		return vc, false, nil
	}
	if m, isMap := node.(map[string]any); !isMap || len(m) == 0 {
		return vc, Truthy(node), nil
	}
	if err := Decode(node, &vc); err != nil {
		return vc, true, &KeyError{Op: "decode view context", Path: name, Err: err}
	}
	return vc, true, nil
}

// ContextPrefix returns the view file prefix for a context, defaulting to
// the context name.
func (s *Store) ContextPrefix(name string) string {
	val, ok := s.Lookup(KeyContexts + "/" + name + "/prefix")
	if !ok {
		return name
	}
	return ToString(val, "")
}
