package tools

import "fmt"

// validateArgs checks the call arguments against a JSON-schema object:
// required fields present, declared types respected. Unknown arguments
// pass through so tools can accept forward-compatible extras.
func validateArgs(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}

	props, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}
	if required, ok := schema["required"].([]string); ok {
		for _, name := range required {
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}

	for name, value := range args {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		typ, ok := prop["type"].(string)
		if !ok {
			continue
		}
		if value == nil {
			continue
		}
		if !matchesType(typ, value) {
			return fmt.Errorf("argument %q: expected %s, got %T", name, typ, value)
		}
	}
	return nil
}

func matchesType(typ string, value any) bool {
	switch typ {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}
