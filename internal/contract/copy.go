package contract

import "fmt"

// copyTypes deep-copies a document type mapping.
func copyTypes(src map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(src))
	for name, schema := range src {
		out[name] = copyMap(schema)
	}
	return out
}

// copyMap deep-copies a JSON-like object. A nil map copies to an empty map.
func copyMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies a JSON-like value. YAML mappings with non-string keys are
// converted to string-keyed objects.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyMap(val)
		}
		return out
	default:
		return v
	}
}
