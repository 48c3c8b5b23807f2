package schema

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/goccy/go-json"
)

// Identifiers of the built-in schema documents.
const (
	DataContractMetaID  = "https://schema.docbatch.dev/meta/data-contract"
	BaseTransitionID    = "https://schema.docbatch.dev/transition/base"
	CreateTransitionID  = "https://schema.docbatch.dev/transition/create"
	ReplaceTransitionID = "https://schema.docbatch.dev/transition/replace"
	DocumentsBatchID    = "https://schema.docbatch.dev/batch/documents"
)

//go:embed schemas
var files embed.FS

// builtin maps schema id to its embedded file.
var builtin = map[string]string{
	DataContractMetaID:  "schemas/meta/data-contract.json",
	BaseTransitionID:    "schemas/transition/base.json",
	CreateTransitionID:  "schemas/transition/create.json",
	ReplaceTransitionID: "schemas/transition/replace.json",
	DocumentsBatchID:    "schemas/batch/documents-batch.json",
}

// metaSchemas lists the built-in documents usable as a contract meta-schema.
var metaSchemas = map[string]bool{
	DataContractMetaID: true,
}

// Raw returns the embedded bytes of a built-in schema.
func Raw(id string) ([]byte, error) {
	name, ok := builtin[id]
	if !ok {
		return nil, fmt.Errorf("unknown built-in schema %q", id)
	}

	return files.ReadFile(name)
}

// Document decodes a built-in schema into a fresh plain value.
func Document(id string) (map[string]any, error) {
	data, err := Raw(id)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema %s:\n%w", id, err)
	}

	return doc, nil
}

// BaseTransition returns the base transition schema, used as an enrichment fragment.
func BaseTransition() map[string]any { return mustDocument(BaseTransitionID) }

// CreateTransition returns the create transition fragment.
func CreateTransition() map[string]any { return mustDocument(CreateTransitionID) }

// ReplaceTransition returns the replace transition fragment.
func ReplaceTransition() map[string]any { return mustDocument(ReplaceTransitionID) }

// mustDocument decodes an embedded schema; embedded files are fixed at build time.
func mustDocument(id string) map[string]any {
	doc, err := Document(id)
	if err != nil {
		panic(err)
	}
	return doc
}

// IsMetaSchema reports whether ref names a known contract meta-schema.
func IsMetaSchema(ref string) bool {
	return metaSchemas[ref]
}
