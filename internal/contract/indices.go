package contract

// Index sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// IndexField is one field of an index with its sort order.
type IndexField struct {
	Name  string // Name is the document field (or system field such as $ownerId)
	Order string // Order is OrderAsc or OrderDesc
}

// Index is a document type index declared under the "indices" schema keyword.
type Index struct {
	Name   string       // Name is the optional index name
	Unique bool         // Unique marks the indexed value tuple as unique per type
	Fields []IndexField // Fields are the indexed fields, in declaration order
}

// Indices returns the indices declared for docType.
// Malformed entries are skipped; the meta-schema rejects them at registration.
func (c *Contract) Indices(docType string) []Index {
	schema, ok := c.documentTypes[docType]
	if !ok {
		return nil
	}

	rawIndices, _ := schema["indices"].([]any)

	indices := make([]Index, 0, len(rawIndices))
	for _, raw := range rawIndices {
		def, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		idx := Index{}
		idx.Name, _ = def["name"].(string)
		idx.Unique, _ = def["unique"].(bool)
		idx.Fields = parseIndexFields(def["properties"])

		if len(idx.Fields) == 0 {
			continue
		}

		indices = append(indices, idx)
	}

	return indices
}

// UniqueIndices returns only the unique indices of docType.
func (c *Contract) UniqueIndices(docType string) []Index {
	var unique []Index
	for _, idx := range c.Indices(docType) {
		if idx.Unique {
			unique = append(unique, idx)
		}
	}
	return unique
}

// parseIndexFields reads a list of single-key {field: order} objects.
func parseIndexFields(v any) []IndexField {
	list, _ := v.([]any)

	fields := make([]IndexField, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok || len(obj) != 1 {
			return nil
		}

		for name, order := range obj {
			o, _ := order.(string)
			fields = append(fields, IndexField{Name: name, Order: o})
		}
	}

	return fields
}
