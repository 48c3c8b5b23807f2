package contract

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"DocBatch/internal/identifier"
)

const (
	// DefaultVersion is the version of a newly created contract.
	DefaultVersion = 1

	// DefaultMetaSchema is the meta-schema every contract is validated against by default.
	DefaultMetaSchema = "https://schema.docbatch.dev/meta/data-contract"

	// schemaIDPrefix prefixes the schema identifier under which the engine resolves a contract.
	schemaIDPrefix = "https://schema.docbatch.dev/contract/"

	// documentTypesKey is the canonical field holding document type schemas.
	documentTypesKey = "documentTypes"
)

// ErrUnknownType is wrapped by UnknownTypeError.
var ErrUnknownType = errors.New("unknown document type")

// UnknownTypeError is returned when a document type is not defined by a contract.
type UnknownTypeError struct {
	Type       string                // Type is the requested document type
	ContractID identifier.Identifier // ContractID is the contract that was searched
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("contract %s does not define document type %q", e.ContractID.Short(), e.Type)
}

func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// Marker distinguishes a base contract from its action-specific enriched views.
type Marker byte

const (
	MarkerBase    Marker = 0
	MarkerCreate  Marker = 1
	MarkerReplace Marker = 2
)

// Contract is an immutable collection of document type schemas identified by the
// hash of its canonical encoding. All accessors return copies; a Contract can be
// shared between goroutines.
type Contract struct {
	id            identifier.Identifier     // id is the content hash of the canonical encoding
	ownerID       identifier.Identifier     // ownerID is the identity that registered the contract
	version       uint32                    // version increases with every contract update
	metaSchema    string                    // metaSchema is the $schema reference
	documentTypes map[string]map[string]any // documentTypes maps type name to JSON schema
	definitions   map[string]any            // definitions holds shared sub-schemas
	marker        Marker                    // marker is non-zero for enriched views
}

// Option configures a contract at construction.
type Option func(*Contract)

// WithVersion sets the contract version.
func WithVersion(v uint32) Option {
	return func(c *Contract) { c.version = v }
}

// WithMetaSchema sets the meta-schema reference.
func WithMetaSchema(ref string) Option {
	return func(c *Contract) { c.metaSchema = ref }
}

// WithDefinitions sets the shared sub-schema definitions.
func WithDefinitions(defs map[string]any) Option {
	return func(c *Contract) { c.definitions = copyMap(defs) }
}

// New creates a contract owned by ownerID with the given document type schemas.
// Inputs are deep-copied; the identifier is derived from the canonical encoding.
func New(ownerID identifier.Identifier, documentTypes map[string]map[string]any, opts ...Option) (*Contract, error) {
	c := &Contract{
		ownerID:       ownerID,
		version:       DefaultVersion,
		metaSchema:    DefaultMetaSchema,
		documentTypes: copyTypes(documentTypes),
		definitions:   map[string]any{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.computeID(); err != nil {
		return nil, err
	}

	return c, nil
}

// computeID hashes the canonical encoding into c.id.
func (c *Contract) computeID() error {
	data, err := c.Encode()
	if err != nil {
		return err
	}

	c.id = identifier.Hash(data)

	return nil
}

// clone returns a deep copy of c.
func (c *Contract) clone() *Contract {
	return &Contract{
		id:            c.id,
		ownerID:       c.ownerID,
		version:       c.version,
		metaSchema:    c.metaSchema,
		documentTypes: copyTypes(c.documentTypes),
		definitions:   copyMap(c.definitions),
		marker:        c.marker,
	}
}

// ID returns the contract identifier.
func (c *Contract) ID() identifier.Identifier { return c.id }

// OwnerID returns the owning identity.
func (c *Contract) OwnerID() identifier.Identifier { return c.ownerID }

// Version returns the contract version.
func (c *Contract) Version() uint32 { return c.version }

// MetaSchema returns the meta-schema reference.
func (c *Contract) MetaSchema() string { return c.metaSchema }

// Marker returns the enrichment marker (MarkerBase for registered contracts).
func (c *Contract) Marker() Marker { return c.marker }

// DocumentTypes returns a copy of the document type schemas.
func (c *Contract) DocumentTypes() map[string]map[string]any {
	return copyTypes(c.documentTypes)
}

// Definitions returns a copy of the shared definitions.
func (c *Contract) Definitions() map[string]any {
	return copyMap(c.definitions)
}

// TypeNames returns the defined document types, sorted.
func (c *Contract) TypeNames() []string {
	names := make([]string, 0, len(c.documentTypes))
	for name := range c.documentTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithVersion returns a copy of c at the given version, with a new identifier.
func (c *Contract) WithVersion(v uint32) (*Contract, error) {
	out := c.clone()
	out.version = v

	if err := out.computeID(); err != nil {
		return nil, err
	}

	return out, nil
}

// WithDefinitions returns a copy of c with the given definitions, with a new identifier.
func (c *Contract) WithDefinitions(defs map[string]any) (*Contract, error) {
	out := c.clone()
	out.definitions = copyMap(defs)

	if err := out.computeID(); err != nil {
		return nil, err
	}

	return out, nil
}

// IsTypeDefined reports whether the contract defines docType.
func (c *Contract) IsTypeDefined(docType string) bool {
	_, ok := c.documentTypes[docType]
	return ok
}

// TypeSchema returns a copy of the schema of docType.
func (c *Contract) TypeSchema(docType string) (map[string]any, error) {
	schema, ok := c.documentTypes[docType]
	if !ok {
		return nil, &UnknownTypeError{Type: docType, ContractID: c.id}
	}

	return copyMap(schema), nil
}

// SchemaID returns the identifier under which the schema engine resolves this contract.
// Enriched views of the same contract have distinct schema identifiers.
func (c *Contract) SchemaID() string {
	return fmt.Sprintf("%s%02x/%s", schemaIDPrefix, byte(c.marker), c.id.Hex())
}

// TypeSchemaRef returns a JSON reference to the schema of docType.
func (c *Contract) TypeSchemaRef(docType string) (string, error) {
	if !c.IsTypeDefined(docType) {
		return "", &UnknownTypeError{Type: docType, ContractID: c.id}
	}

	return c.SchemaID() + "#/" + documentTypesKey + "/" + escapePointer(docType), nil
}

// CanonicalForm returns the ordered plain representation used for hashing and as
// the schema document. Empty definitions are omitted.
func (c *Contract) CanonicalForm() map[string]any {
	types := make(map[string]any, len(c.documentTypes))
	for name, schema := range c.documentTypes {
		types[name] = copyMap(schema)
	}

	form := map[string]any{
		"$schema":        c.metaSchema,
		"ownerId":        c.ownerID.String(),
		"version":        c.version,
		documentTypesKey: types,
	}

	if len(c.definitions) > 0 {
		form["definitions"] = copyMap(c.definitions)
	}

	return form
}

// Encode returns the canonical JSON encoding (object keys sorted).
func (c *Contract) Encode() ([]byte, error) {
	data, err := json.Marshal(c.CanonicalForm())
	if err != nil {
		return nil, fmt.Errorf("encode contract:\n%w", err)
	}

	return data, nil
}

// Hash returns the content hash of the canonical encoding.
func (c *Contract) Hash() (identifier.Identifier, error) {
	data, err := c.Encode()
	if err != nil {
		return identifier.Identifier{}, err
	}

	return identifier.Hash(data), nil
}

// Decode parses a canonical encoding produced by Encode.
// Numbers are kept as json.Number so re-encoding is byte-stable.
func Decode(data []byte) (*Contract, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode contract:\n%w", err)
	}

	return fromPlain(raw)
}

// fromPlain builds a contract from a decoded canonical form.
func fromPlain(raw map[string]any) (*Contract, error) {
	ownerText, ok := raw["ownerId"].(string)
	if !ok {
		return nil, fmt.Errorf("missing ownerId")
	}

	ownerID, err := identifier.Parse(ownerText)
	if err != nil {
		return nil, fmt.Errorf("parse ownerId:\n%w", err)
	}

	version, err := toUint32(raw["version"])
	if err != nil {
		return nil, fmt.Errorf("parse version:\n%w", err)
	}

	metaSchema, ok := raw["$schema"].(string)
	if !ok {
		return nil, fmt.Errorf("missing $schema")
	}

	rawTypes, ok := raw[documentTypesKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing %s", documentTypesKey)
	}

	types := make(map[string]map[string]any, len(rawTypes))
	for name, v := range rawTypes {
		schema, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("document type %q is not an object", name)
		}
		types[name] = schema
	}

	opts := []Option{WithVersion(version), WithMetaSchema(metaSchema)}

	if defs, ok := raw["definitions"].(map[string]any); ok {
		opts = append(opts, WithDefinitions(defs))
	}

	return New(ownerID, types, opts...)
}

// toUint32 converts a decoded JSON/YAML number to uint32.
func toUint32(v any) (uint32, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		if i < 0 || i > int64(^uint32(0)) {
			return 0, fmt.Errorf("out of range: %d", i)
		}
		return uint32(i), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("out of range: %d", n)
		}
		return uint32(n), nil
	case uint32:
		return n, nil
	case float64:
		if n < 0 || n != float64(uint32(n)) {
			return 0, fmt.Errorf("not an unsigned integer: %v", n)
		}
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// escapePointer escapes a JSON pointer reference token.
func escapePointer(s string) string {
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(s)
}
