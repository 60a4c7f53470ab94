package config

import "github.com/dshills/atomik/internal/config/layer"

// FlashNamespace is the selector namespace of flash messages, as in
// Get("flash:error", nil).
const FlashNamespace = "flash"

const flashPath = KeySession + "/__FLASH"

// Flash queues a message under label in the session for the next request.
// An empty label means "default".
func Flash(s *Store, message any, label string) error {
	if label == "" {
		label = "default"
	}
	return s.Add(flashPath+layer.Separator+label, []any{message})
}

// FlashSelector returns the selector that pops flash messages from s.
// "flash:<label>" returns and clears the messages of one label as a list;
// "flash:all" (or "flash:") returns and clears every label as a map.
func FlashSelector(s *Store) Selector {
	return func(label string, _ any) any {
		if label == "" || label == "all" {
			all, err := s.Delete(flashPath)
			if err != nil {
				return map[string]any{}
			}
			return all
		}
		msgs, err := s.Delete(flashPath + layer.Separator + label)
		if err != nil {
			return []any{}
		}
		return msgs
	}
}
