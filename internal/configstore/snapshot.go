package configstore

import "strconv"

// Snapshot is an immutable view of the merged configuration. Tool calls
// capture one at turn start so a concurrent section write never changes the
// view mid-turn.
type Snapshot struct {
	sections map[string]map[string]any
}

// NewSnapshot wraps pre-merged sections in a snapshot. The caller must not
// mutate the map afterwards.
func NewSnapshot(sections map[string]map[string]any) *Snapshot {
	return &Snapshot{sections: sections}
}

// Section returns the merged document for a section, or nil when the section
// exists in no layer.
func (s *Snapshot) Section(name string) map[string]any {
	if s == nil {
		return nil
	}
	return s.sections[name]
}

// Sections returns the names of all known sections.
func (s *Snapshot) Sections() []string {
	names := make([]string, 0, len(s.sections))
	for name := range s.sections {
		names = append(names, name)
	}
	return names
}

// String returns a string-valued key, or def when absent or of another type.
func (s *Snapshot) String(section, key, def string) string {
	doc := s.Section(section)
	if doc == nil {
		return def
	}
	if v, ok := doc[key].(string); ok {
		return v
	}
	return def
}

// Int returns an integer-valued key. JSON numbers arrive as float64,
// environment values as strings, and boot-file values as int or int64; all
// are accepted.
func (s *Snapshot) Int(section, key string, def int) int {
	doc := s.Section(section)
	if doc == nil {
		return def
	}
	switch v := doc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns a boolean-valued key.
func (s *Snapshot) Bool(section, key string, def bool) bool {
	doc := s.Section(section)
	if doc == nil {
		return def
	}
	switch v := doc[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Float returns a float-valued key.
func (s *Snapshot) Float(section, key string, def float64) float64 {
	doc := s.Section(section)
	if doc == nil {
		return def
	}
	switch v := doc[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
