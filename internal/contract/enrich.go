package contract

// Enrich derives an action-specific view of base. Every document type schema gets
// the properties of fragment merged over its own (fragment wins), the fragment's
// required fields appended, and the excluded fields dropped from its required list.
// The view keeps the identifier of base and carries marker. base is not modified.
//
// Enrich is idempotent: enriching a view again with the same arguments yields an
// equal view.
func Enrich(base *Contract, fragment map[string]any, marker Marker, excluded ...string) *Contract {
	out := base.clone()
	out.marker = marker

	fragmentProps, _ := fragment["properties"].(map[string]any)
	fragmentRequired := stringList(fragment["required"])

	for name, schema := range out.documentTypes {
		out.documentTypes[name] = enrichType(schema, fragmentProps, fragmentRequired, excluded)
	}

	return out
}

// enrichType merges the fragment into one (already copied) type schema.
func enrichType(schema, props map[string]any, required, excluded []string) map[string]any {
	merged, _ := schema["properties"].(map[string]any)
	if merged == nil {
		merged = map[string]any{}
	}

	for k, v := range props {
		merged[k] = copyValue(v)
	}

	schema["properties"] = merged

	fields := appendUnique(stringList(schema["required"]), required...)
	fields = removeAll(fields, excluded)

	list := make([]any, len(fields))
	for i, f := range fields {
		list[i] = f
	}

	schema["required"] = list

	return schema
}

// stringList extracts the string members of a JSON array.
func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// appendUnique appends items not already present, preserving order.
func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst)+len(items))
	out := make([]string, 0, len(dst)+len(items))

	for _, s := range append(dst, items...) {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}

	return out
}

// removeAll drops every occurrence of the excluded values.
func removeAll(list, excluded []string) []string {
	if len(excluded) == 0 {
		return list
	}

	drop := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		drop[e] = true
	}

	out := list[:0]
	for _, s := range list {
		if !drop[s] {
			out = append(out, s)
		}
	}

	return out
}
