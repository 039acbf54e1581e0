package webhook

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Render substitutes {{payload.a.b.0.c}} placeholders in a template with
// values from the decoded JSON body. Placeholders that do not resolve stay
// byte-identical in the output. Rendering is a single pass: substituted
// values are never rescanned.
func Render(template string, payload any) string {
	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += start + 2

		b.WriteString(rest[:start])
		expr := strings.TrimSpace(rest[start+2 : end])
		if value, ok := resolvePath(expr, payload); ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[start : end+2])
		}
		rest = rest[end+2:]
	}
}

// resolvePath walks a dot-separated path rooted at "payload": object keys
// by name, array elements by integer index.
func resolvePath(expr string, payload any) (string, bool) {
	segments := strings.Split(expr, ".")
	if len(segments) == 0 || segments[0] != "payload" {
		return "", false
	}

	current := payload
	for _, segment := range segments[1:] {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return "", false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}
			current = node[idx]
		default:
			return "", false
		}
	}
	return formatValue(current)
}

func formatValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "null", true
	default:
		// Objects and arrays render as compact JSON.
		data, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}
