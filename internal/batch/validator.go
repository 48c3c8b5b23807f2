package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/logger"
	"DocBatch/internal/schema"
	"DocBatch/internal/transition"
	"DocBatch/internal/validation"
)

// Deps are the collaborators of a Validator.
type Deps struct {
	Contracts  ContractFetcher   // Contracts resolves contracts referenced by transitions
	Identities IdentityChecker   // Identities checks the submitter exists
	Signatures SignatureVerifier // Signatures verifies the batch signature
	Schemas    SchemaValidator   // Schemas evaluates JSON schemas
}

// Validator decides whether a documents batch may be admitted.
type Validator struct {
	deps Deps
}

// NewValidator creates a validator. Every collaborator is required.
func NewValidator(deps Deps) (*Validator, error) {
	switch {
	case deps.Contracts == nil:
		return nil, errors.New("missing contract fetcher")
	case deps.Identities == nil:
		return nil, errors.New("missing identity checker")
	case deps.Signatures == nil:
		return nil, errors.New("missing signature verifier")
	case deps.Schemas == nil:
		return nil, errors.New("missing schema validator")
	}

	return &Validator{deps: deps}, nil
}

// contractGroup is the set of transitions referencing one contract.
type contractGroup struct {
	id          identifier.Identifier // id is the referenced contract
	transitions []transition.Raw      // transitions are the members, in batch order
}

// ValidateBatch validates raw and returns every validation error found up to the
// first failing gate. Errors are returned only for faults of a collaborator.
func (v *Validator) ValidateBatch(ctx context.Context, raw Raw) (*validation.Result, error) {
	start := time.Now()

	result, b, err := v.validate(ctx, raw)
	if err != nil {
		logger.Warn("batch validation failed", "error", err, logger.Timed(start))
		return nil, err
	}

	attrs := []any{"valid", result.IsValid(), "errors", len(result.Errors()), logger.Timed(start)}
	if b != nil {
		attrs = append(attrs, "owner", b.OwnerID().Short(), "transitions", len(b.Transitions()))
	}

	logger.Debug("batch validated", attrs...)

	return result, nil
}

// validate runs the validation stages in order.
func (v *Validator) validate(ctx context.Context, raw Raw) (*validation.Result, *Batch, error) {
	// 1. Envelope must match the batch schema
	result, err := v.deps.Schemas.Validate(schema.DocumentsBatchID, map[string]any(raw), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("validate envelope:\n%w", err)
	}

	if !result.IsValid() {
		return result, nil, nil
	}

	b, err := FromRaw(raw)
	if err != nil {
		result.AddError(&validation.SchemaError{Keyword: "type", Message: err.Error()})
		return result, nil, nil
	}

	// 2. Group transitions by contract
	groups, grouping := groupByContract(b.Transitions())
	result.Merge(grouping)

	// 3. Fetch and validate every group concurrently
	contracts, structure, err := v.validateGroups(ctx, b.OwnerID(), groups)
	if err != nil {
		return nil, nil, err
	}

	result.Merge(structure)

	// 4. Later stages run only on structurally valid batches
	if !result.IsValid() {
		return result, b, nil
	}

	// 5. Batch-internal duplicates
	result.AddError(duplicatesError(validation.DetectorByID, FindDuplicatesByID(b.Transitions())))
	result.AddError(duplicatesError(validation.DetectorByIndices, FindDuplicatesByIndices(b.Transitions(), contracts, b.OwnerID())))

	if !result.IsValid() {
		return result, b, nil
	}

	// 6. Submitter identity, then signature
	identity, err := v.deps.Identities.CheckIdentity(ctx, b.OwnerID())
	if err != nil {
		return nil, nil, fmt.Errorf("check identity %s:\n%w", b.OwnerID().Short(), err)
	}

	result.Merge(identity)

	if !result.IsValid() {
		return result, b, nil
	}

	signature, err := v.deps.Signatures.VerifySignature(ctx, b, b.OwnerID())
	if err != nil {
		return nil, nil, fmt.Errorf("verify signature:\n%w", err)
	}

	result.Merge(signature)

	return result, b, nil
}

// groupByContract groups transitions by declared contract, in order of first
// appearance. Transitions without a usable contract id are reported and left out.
func groupByContract(raws []transition.Raw) ([]*contractGroup, *validation.Result) {
	result := validation.NewResult()

	var groups []*contractGroup
	index := make(map[identifier.Identifier]int)

	for _, raw := range raws {
		if !raw.HasContractID() {
			result.AddError(&validation.MissingContractIDError{Transition: raw.Plain()})
			continue
		}

		id, ok := raw.Identifier(transition.TagContractID)
		if !ok {
			result.AddError(&validation.InvalidContractIDError{Value: raw[transition.TagContractID]})
			continue
		}

		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, &contractGroup{id: id})
		}

		groups[i].transitions = append(groups[i].transitions, raw)
	}

	return groups, result
}

// validateGroups fetches each group's contract and validates its transitions.
// Groups run concurrently; results are merged in group order.
func (v *Validator) validateGroups(ctx context.Context, owner identifier.Identifier, groups []*contractGroup) (map[identifier.Identifier]*contract.Contract, *validation.Result, error) {
	results := make([]*validation.Result, len(groups))
	fetched := make([]*contract.Contract, len(groups))

	g, gctx := errgroup.WithContext(ctx)

	for i, grp := range groups {
		g.Go(func() error {
			c, err := v.deps.Contracts.FetchContract(gctx, grp.id)
			if err != nil {
				return fmt.Errorf("fetch contract %s:\n%w", grp.id.Short(), err)
			}

			if c == nil {
				results[i] = validation.NewResult(&validation.ContractNotFoundError{ContractID: grp.id.Bytes()})
				return nil
			}

			r, err := v.validateTransitions(c, owner, grp.transitions)
			if err != nil {
				return fmt.Errorf("validate transitions of %s:\n%w", grp.id.Short(), err)
			}

			fetched[i] = c
			results[i] = r

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	result := validation.NewResult()
	contracts := make(map[identifier.Identifier]*contract.Contract, len(groups))

	for i, grp := range groups {
		result.Merge(results[i])

		if fetched[i] != nil {
			contracts[grp.id] = fetched[i]
		}
	}

	return contracts, result, nil
}

// duplicatesError wraps a detector's findings, or returns nil when there are none.
func duplicatesError(detector validation.Detector, found []transition.Raw) validation.Error {
	if len(found) == 0 {
		return nil
	}

	plain := make([]map[string]any, len(found))
	for i, raw := range found {
		plain[i] = raw.Plain()
	}

	return &validation.DuplicateTransitionsError{Detector: detector, Transitions: plain}
}
