package transition

import (
	"fmt"
	"strings"

	"DocBatch/internal/identifier"
)

// Transition is one typed document operation: *Create, *Replace or *Delete.
type Transition interface {
	Common() *Base
	isTransition()
}

// Base holds the attributes shared by every transition.
type Base struct {
	ID         identifier.Identifier // ID is the document identifier
	Type       string                // Type is the document type within the contract
	Action     Action                // Action is the operation tag
	ContractID identifier.Identifier // ContractID is the owning contract
}

// Common returns the shared attributes.
func (b *Base) Common() *Base { return b }

// Create inserts a new document.
type Create struct {
	Base
	Entropy   []byte         // Entropy is the client-chosen input of the document id
	CreatedAt *int64         // CreatedAt is the optional creation timestamp in ms
	UpdatedAt *int64         // UpdatedAt is the optional update timestamp in ms
	Data      map[string]any // Data holds the user fields
}

// Replace overwrites the fields of an existing document.
type Replace struct {
	Base
	Revision  int64          // Revision is the new document revision
	UpdatedAt *int64         // UpdatedAt is the optional update timestamp in ms
	Data      map[string]any // Data holds the user fields
}

// Delete removes a document.
type Delete struct {
	Base
}

func (*Create) isTransition()  {}
func (*Replace) isTransition() {}
func (*Delete) isTransition()  {}

// FromRaw parses a record whose shape has already been validated.
func FromRaw(r Raw) (Transition, error) {
	base, err := parseBase(r)
	if err != nil {
		return nil, err
	}

	switch base.Action {
	case ActionCreate:
		return parseCreate(r, base)
	case ActionReplace:
		return parseReplace(r, base)
	case ActionDelete:
		return &Delete{Base: base}, nil
	default:
		return nil, fmt.Errorf("unknown action %d", base.Action)
	}
}

// ToRaw renders a typed transition back to its record form (binary tags as bytes).
func ToRaw(t Transition) Raw {
	b := t.Common()

	r := Raw{
		TagID:         b.ID.Bytes(),
		TagType:       b.Type,
		TagAction:     int(b.Action),
		TagContractID: b.ContractID.Bytes(),
	}

	switch v := t.(type) {
	case *Create:
		copyData(r, v.Data)
		r[TagEntropy] = append([]byte(nil), v.Entropy...)
		if v.CreatedAt != nil {
			r[TagCreatedAt] = *v.CreatedAt
		}
		if v.UpdatedAt != nil {
			r[TagUpdatedAt] = *v.UpdatedAt
		}
	case *Replace:
		copyData(r, v.Data)
		r[TagRevision] = v.Revision
		if v.UpdatedAt != nil {
			r[TagUpdatedAt] = *v.UpdatedAt
		}
	case *Delete:
	}

	return r
}

// parseBase reads the shared attributes.
func parseBase(r Raw) (Base, error) {
	var b Base

	docType, ok := r.Type()
	if !ok {
		return b, fmt.Errorf("missing %s", TagType)
	}

	action, ok := r.Action()
	if !ok {
		return b, fmt.Errorf("missing or malformed %s", TagAction)
	}

	id, ok := r.Identifier(TagID)
	if !ok {
		return b, fmt.Errorf("missing or malformed %s", TagID)
	}

	contractID, ok := r.Identifier(TagContractID)
	if !ok {
		return b, fmt.Errorf("missing or malformed %s", TagContractID)
	}

	b.ID = id
	b.Type = docType
	b.Action = action
	b.ContractID = contractID

	return b, nil
}

// parseCreate reads the create-specific attributes.
func parseCreate(r Raw, base Base) (*Create, error) {
	entropy, ok := r.Bytes(TagEntropy)
	if !ok {
		return nil, fmt.Errorf("missing or malformed %s", TagEntropy)
	}

	c := &Create{Base: base, Entropy: append([]byte(nil), entropy...), Data: userData(r)}

	var err error
	if c.CreatedAt, err = optionalInt(r, TagCreatedAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = optionalInt(r, TagUpdatedAt); err != nil {
		return nil, err
	}

	return c, nil
}

// parseReplace reads the replace-specific attributes.
func parseReplace(r Raw, base Base) (*Replace, error) {
	rev, ok := r[TagRevision]
	if !ok {
		return nil, fmt.Errorf("missing %s", TagRevision)
	}

	revision, err := IntValue(rev)
	if err != nil {
		return nil, fmt.Errorf("parse %s:\n%w", TagRevision, err)
	}

	rp := &Replace{Base: base, Revision: revision, Data: userData(r)}

	if rp.UpdatedAt, err = optionalInt(r, TagUpdatedAt); err != nil {
		return nil, err
	}

	return rp, nil
}

// optionalInt reads an integer tag that may be absent.
func optionalInt(r Raw, tag string) (*int64, error) {
	v, ok := r[tag]
	if !ok {
		return nil, nil
	}

	n, err := IntValue(v)
	if err != nil {
		return nil, fmt.Errorf("parse %s:\n%w", tag, err)
	}

	return &n, nil
}

// userData returns the fields that are not system tags.
func userData(r Raw) map[string]any {
	data := make(map[string]any)
	for k, v := range r {
		if !strings.HasPrefix(k, "$") {
			data[k] = v
		}
	}
	return data
}

// copyData writes user fields into r.
func copyData(r Raw, data map[string]any) {
	for k, v := range data {
		r[k] = v
	}
}
