package batch

import (
	"bytes"
	"errors"
	"fmt"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/schema"
	"DocBatch/internal/transition"
	"DocBatch/internal/validation"
)

// errNilContract is returned when structural validation is asked to run without a contract.
var errNilContract = errors.New("structural validation requires a contract")

// view is an enriched contract ready to be handed to the schema engine.
type view struct {
	contract *contract.Contract // contract is the enriched view
	aux      map[string]any     // aux resolves the view's schema id to its canonical form
}

// newView wraps an enriched contract.
func newView(c *contract.Contract) view {
	return view{
		contract: c,
		aux:      map[string]any{c.SchemaID(): c.CanonicalForm()},
	}
}

// views holds the action-specific schema views of one contract.
type views struct {
	base    *contract.Contract // base is the registered contract
	create  view               // create validates create transitions
	replace view               // replace validates replace transitions
}

// buildViews derives the create and replace views of c. Both are built on a base
// enrichment so every view requires the common transition tags.
func buildViews(c *contract.Contract) views {
	enrichedBase := contract.Enrich(c, schema.BaseTransition(), contract.MarkerBase)

	return views{
		base:    c,
		create:  newView(contract.Enrich(enrichedBase, schema.CreateTransition(), contract.MarkerCreate)),
		replace: newView(contract.Enrich(enrichedBase, schema.ReplaceTransition(), contract.MarkerReplace, transition.TagCreatedAt)),
	}
}

// validateTransitions checks every transition of one contract group.
func (v *Validator) validateTransitions(c *contract.Contract, owner identifier.Identifier, raws []transition.Raw) (*validation.Result, error) {
	if c == nil {
		return nil, errNilContract
	}

	vs := buildViews(c)
	result := validation.NewResult()

	for _, raw := range raws {
		r, err := v.validateTransition(vs, owner, raw)
		if err != nil {
			return nil, err
		}

		result.Merge(r)
	}

	return result, nil
}

// validateTransition checks one record. Checks stop at the first failure that
// prevents selecting a schema.
func (v *Validator) validateTransition(vs views, owner identifier.Identifier, raw transition.Raw) (*validation.Result, error) {
	// 1. Type must be present and defined
	if !raw.HasType() {
		return validation.NewResult(&validation.MissingDocumentTypeError{Transition: raw.Plain()}), nil
	}

	docType, ok := raw.Type()
	if !ok || !vs.base.IsTypeDefined(docType) {
		return validation.NewResult(&validation.UnknownDocumentTypeError{
			Type:       raw[transition.TagType],
			ContractID: vs.base.ID().Bytes(),
		}), nil
	}

	// 2. Action must be present and known
	if !raw.HasAction() {
		return validation.NewResult(&validation.MissingActionError{Transition: raw.Plain()}), nil
	}

	action, ok := raw.Action()
	if !ok || !action.Valid() {
		return validation.NewResult(&validation.InvalidActionError{
			Action:     raw.ActionValue(),
			Transition: raw.Plain(),
		}), nil
	}

	// 3. Payload must match the schema of the action
	result, err := v.validateShape(vs, docType, action, raw)
	if err != nil || !result.IsValid() {
		return result, err
	}

	// 4. Typed checks on a well-formed record
	t, err := transition.FromRaw(raw)
	if err != nil {
		result.AddError(&validation.SchemaError{Keyword: "type", Message: err.Error()})
		return result, nil
	}

	result.AddError(checkDocumentID(t, owner, raw))

	return result, nil
}

// validateShape evaluates raw against the schema selected by action.
func (v *Validator) validateShape(vs views, docType string, action transition.Action, raw transition.Raw) (*validation.Result, error) {
	var target view

	switch action {
	case transition.ActionCreate:
		target = vs.create
	case transition.ActionReplace:
		target = vs.replace
	case transition.ActionDelete:
		return v.deps.Schemas.Validate(schema.BaseTransitionID, raw.Plain(), nil)
	default:
		return nil, fmt.Errorf("no schema for action %s", action)
	}

	ref, err := target.contract.TypeSchemaRef(docType)
	if err != nil {
		return nil, err
	}

	return v.deps.Schemas.Validate(ref, raw.Plain(), target.aux)
}

// checkDocumentID verifies a create transition's identifier is derived from its
// contract, owner, type and entropy.
func checkDocumentID(t transition.Transition, owner identifier.Identifier, raw transition.Raw) validation.Error {
	switch tr := t.(type) {
	case *transition.Create:
		expected := identifier.DocumentID(tr.ContractID, owner, tr.Type, tr.Entropy)
		if !bytes.Equal(expected[:], tr.ID[:]) {
			return &validation.InvalidDocumentIDError{Expected: expected.Bytes(), Transition: raw.Plain()}
		}
		return nil
	case *transition.Replace, *transition.Delete:
		return nil
	default:
		return nil
	}
}
