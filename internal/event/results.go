package event

import (
	"fmt"
	"strings"
)

// Result is the value one listener returned.
type Result struct {
	Listener string
	Value    any
}

// Results holds listener return values in invocation order.
type Results []Result

// Map returns the values keyed by listener name. Later listeners with the
// same name overwrite earlier ones.
func (r Results) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, res := range r {
		m[res.Listener] = res.Value
	}
	return m
}

// Join concatenates the stringified values in invocation order.
// Nil values contribute nothing.
func (r Results) Join() string {
	var sb strings.Builder
	for _, res := range r {
		if res.Value == nil {
			continue
		}
		fmt.Fprint(&sb, res.Value)
	}
	return sb.String()
}
