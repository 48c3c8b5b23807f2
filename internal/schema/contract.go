package schema

import (
	"DocBatch/internal/contract"
	"DocBatch/internal/validation"
)

// ValidateContract checks the canonical form of c against its declared meta-schema.
// A meta-schema the engine does not know is reported as a validation error.
func (e *Engine) ValidateContract(c *contract.Contract) (*validation.Result, error) {
	meta := c.MetaSchema()
	if !IsMetaSchema(meta) {
		return validation.NewResult(&validation.UnknownMetaSchemaError{MetaSchema: meta}), nil
	}

	return e.Validate(meta, c.CanonicalForm(), nil)
}
