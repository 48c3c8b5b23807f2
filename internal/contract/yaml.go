package contract

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"DocBatch/internal/identifier"
)

// definitionFile is the operator-authored form of a contract.
type definitionFile struct {
	OwnerID       string                    `yaml:"ownerId"`
	Version       uint32                    `yaml:"version"`
	MetaSchema    string                    `yaml:"$schema"`
	DocumentTypes map[string]map[string]any `yaml:"documentTypes"`
	Definitions   map[string]any            `yaml:"definitions"`
}

// LoadYAML reads a contract definition written in YAML (or JSON, a YAML subset).
func LoadYAML(r io.Reader) (*Contract, error) {
	var def definitionFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode contract definition:\n%w", err)
	}

	ownerID, err := identifier.Parse(def.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("parse ownerId:\n%w", err)
	}

	if len(def.DocumentTypes) == 0 {
		return nil, fmt.Errorf("contract defines no document types")
	}

	var opts []Option
	if def.Version != 0 {
		opts = append(opts, WithVersion(def.Version))
	}
	if def.MetaSchema != "" {
		opts = append(opts, WithMetaSchema(def.MetaSchema))
	}
	if len(def.Definitions) > 0 {
		opts = append(opts, WithDefinitions(def.Definitions))
	}

	return New(ownerID, def.DocumentTypes, opts...)
}
