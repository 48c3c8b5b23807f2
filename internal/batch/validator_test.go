package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"DocBatch/internal/identifier"
	"DocBatch/internal/transition"
	"DocBatch/internal/validation"
)

// TestValidateBatch_Valid verifies a well-formed signed batch passes every stage.
func TestValidateBatch_Valid(t *testing.T) {
	f := newFixture(t)

	raw := f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice", "$createdAt": 1700000000000}))

	result, err := f.validator.ValidateBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	if !result.IsValid() {
		t.Fatalf("expected valid batch, got %v", result)
	}

	if f.identities.calls != 1 || f.signatures.calls != 1 {
		t.Errorf("expected one identity and one signature check, got %d and %d", f.identities.calls, f.signatures.calls)
	}
}

// TestValidateBatch_AllActions verifies create, replace and delete in one batch.
func TestValidateBatch_AllActions(t *testing.T) {
	f := newFixture(t)

	raw := f.newBatch(t,
		f.newCreate(1, map[string]any{"username": "alice"}),
		f.newReplace(identifier.Hash([]byte("doc-2")), map[string]any{"username": "bob"}),
		f.newDelete(identifier.Hash([]byte("doc-3"))),
	)

	result, err := f.validator.ValidateBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	if !result.IsValid() {
		t.Fatalf("expected valid batch, got %v", result)
	}
}

// TestValidateBatch_InvalidDocumentID verifies entropy tampering is caught and gates later stages.
func TestValidateBatch_InvalidDocumentID(t *testing.T) {
	f := newFixture(t)

	tr := f.newCreate(1, map[string]any{"username": "alice"})
	tr[transition.TagEntropy] = make([]byte, 32)

	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t, tr))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	errs := result.Errors()
	if len(errs) != 1 || errs[0].Kind() != validation.KindInvalidDocumentIdentifier {
		t.Fatalf("expected a single InvalidDocumentIdentifier, got %v", result)
	}

	if f.identities.calls != 0 || f.signatures.calls != 0 {
		t.Error("identity and signature must not be checked after a structural failure")
	}
}

// TestValidateBatch_ContractNotFound verifies unknown contracts gate later stages.
func TestValidateBatch_ContractNotFound(t *testing.T) {
	f := newFixture(t)

	tr := f.newCreate(1, map[string]any{"username": "alice"})
	missing := identifier.Hash([]byte("missing"))
	tr[transition.TagContractID] = missing.Bytes()

	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t, tr))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	errs := result.Errors()
	if len(errs) != 1 || errs[0].Kind() != validation.KindContractNotFound {
		t.Fatalf("expected a single ContractNotFound, got %v", result)
	}

	notFound := errs[0].(*validation.ContractNotFoundError)
	if identifier.Identifier(notFound.ContractID) != missing {
		t.Errorf("wrong contract id reported: %x", notFound.ContractID)
	}

	if f.identities.calls != 0 || f.signatures.calls != 0 {
		t.Error("identity and signature must not be checked when a contract is missing")
	}
}

// TestValidateBatch_DuplicateUniqueIndex verifies colliding unique values are reported.
func TestValidateBatch_DuplicateUniqueIndex(t *testing.T) {
	f := newFixture(t)

	a := f.newCreate(1, map[string]any{"username": "alice"})
	b := f.newCreate(2, map[string]any{"username": "alice"})

	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t, a, b))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", result)
	}

	dup, ok := errs[0].(*validation.DuplicateTransitionsError)
	if !ok {
		t.Fatalf("expected DuplicateTransitionsError, got %T", errs[0])
	}

	if dup.Detector != validation.DetectorByIndices || len(dup.Transitions) != 2 {
		t.Errorf("expected both members from the index detector, got %s with %d", dup.Detector, len(dup.Transitions))
	}

	if f.identities.calls != 0 {
		t.Error("identity must not be checked when duplicates exist")
	}
}

// TestValidateBatch_DuplicateID verifies two operations on one document are reported.
func TestValidateBatch_DuplicateID(t *testing.T) {
	f := newFixture(t)

	id := identifier.Hash([]byte("doc"))
	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t,
		f.newReplace(id, map[string]any{"username": "alice"}),
		f.newDelete(id),
	))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	if !result.Has(validation.KindDuplicateTransitions) {
		t.Fatalf("expected DuplicateTransitions, got %v", result)
	}

	dup := result.FirstError().(*validation.DuplicateTransitionsError)
	if dup.Detector != validation.DetectorByID || len(dup.Transitions) != 2 {
		t.Errorf("unexpected report: %s with %d members", dup.Detector, len(dup.Transitions))
	}
}

// TestValidateBatch_InvalidEnvelope verifies envelope failures stop everything.
func TestValidateBatch_InvalidEnvelope(t *testing.T) {
	f := newFixture(t)

	raw := f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice"}))
	raw[FieldType] = 2
	delete(raw, FieldSignature)

	result, err := f.validator.ValidateBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	if result.IsValid() || !result.Has(validation.KindJSONSchema) {
		t.Fatalf("expected schema errors, got %v", result)
	}

	if len(result.Errors()) < 2 {
		t.Errorf("expected every envelope failure, got %v", result)
	}

	if f.contracts.calls != 0 {
		t.Error("contracts must not be fetched for an invalid envelope")
	}
}

// TestValidateBatch_NumberForms verifies schema-accepted spellings of binary and
// integer fields are validated rather than reported as faults.
func TestValidateBatch_NumberForms(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *fixture) Raw
		valid bool
	}{
		{"entropy as array", func(f *fixture) Raw {
			tr := f.newCreate(1, map[string]any{"username": "alice"})
			tr[transition.TagEntropy] = numberArray(tr[transition.TagEntropy].([]byte))
			return f.newBatch(t, tr)
		}, true},
		{"id as array", func(f *fixture) Raw {
			tr := f.newDelete(identifier.Hash([]byte("doc")))
			tr[transition.TagID] = numberArray(tr[transition.TagID].([]byte))
			return f.newBatch(t, tr)
		}, true},
		{"contract id as array", func(f *fixture) Raw {
			tr := f.newCreate(1, map[string]any{"username": "alice"})
			tr[transition.TagContractID] = numberArray(f.contract.ID().Bytes())
			return f.newBatch(t, tr)
		}, true},
		{"owner id as array", func(f *fixture) Raw {
			raw := f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice"}))
			raw[FieldOwnerID] = numberArray(f.owner.Bytes())
			return f.sign(t, raw)
		}, true},
		{"revision with fraction", func(f *fixture) Raw {
			return f.newBatch(t, f.newReplace(identifier.Hash([]byte("doc")), map[string]any{
				"username":             "bob",
				transition.TagRevision: json.Number("2.0"),
			}))
		}, true},
		{"created at with fraction", func(f *fixture) Raw {
			return f.newBatch(t, f.newCreate(1, map[string]any{
				"username":              "alice",
				transition.TagCreatedAt: json.Number("1700000000000.0"),
			}))
		}, true},
		{"key id in exponent form", func(f *fixture) Raw {
			raw := f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice"}))
			raw[FieldSignaturePublicKeyID] = json.Number("1e1")
			return raw
		}, true},
		{"entropy element out of range", func(f *fixture) Raw {
			tr := f.newCreate(1, map[string]any{"username": "alice"})
			entropy := numberArray(tr[transition.TagEntropy].([]byte))
			entropy[0] = json.Number("256")
			tr[transition.TagEntropy] = entropy
			return f.newBatch(t, tr)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			result, err := f.validator.ValidateBatch(context.Background(), tt.build(f))
			if err != nil {
				t.Fatalf("ValidateBatch returned a fault: %v", err)
			}

			if result.IsValid() != tt.valid {
				t.Errorf("valid: got %v, want %v (%v)", result.IsValid(), tt.valid, result)
			}
		})
	}
}

// TestValidateBatch_TooManyTransitions verifies the envelope bounds the batch size.
func TestValidateBatch_TooManyTransitions(t *testing.T) {
	f := newFixture(t)

	transitions := make([]transition.Raw, MaxTransitions+1)
	for i := range transitions {
		transitions[i] = f.newCreate(byte(i), map[string]any{"username": "u"})
	}

	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t, transitions...))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	if !result.Has(validation.KindJSONSchema) {
		t.Errorf("expected envelope schema error, got %v", result)
	}
}

// TestValidateBatch_ContractIDErrors verifies grouping errors do not stop other groups.
func TestValidateBatch_ContractIDErrors(t *testing.T) {
	f := newFixture(t)

	missing := f.newCreate(1, map[string]any{"username": "a"})
	delete(missing, transition.TagContractID)

	malformed := f.newCreate(2, map[string]any{"username": "b"})
	malformed[transition.TagContractID] = "not-bytes"

	null := f.newCreate(4, map[string]any{"username": "d"})
	null[transition.TagContractID] = nil

	badType := f.newCreate(3, map[string]any{"username": "c"})
	badType[transition.TagType] = "ghost"

	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t, missing, malformed, null, badType))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	want := []validation.Kind{validation.KindMissingContractID, validation.KindInvalidContractID, validation.KindInvalidContractID, validation.KindUnknownDocumentType}
	got := result.Kinds()

	if len(got) != len(want) {
		t.Fatalf("kinds: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kind %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

// TestValidateBatch_IdentityBeforeSignature verifies a missing identity skips signature checks.
func TestValidateBatch_IdentityBeforeSignature(t *testing.T) {
	f := newFixture(t)
	f.identities.known = nil

	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice"})))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	if !result.Has(validation.KindIdentityNotFound) {
		t.Fatalf("expected IdentityNotFound, got %v", result)
	}

	if f.signatures.calls != 0 {
		t.Error("signature must not be verified for an unknown identity")
	}
}

// TestValidateBatch_InvalidSignature verifies a tampered batch fails signature verification.
func TestValidateBatch_InvalidSignature(t *testing.T) {
	f := newFixture(t)

	raw := f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice"}))
	raw[FieldProtocolVersion] = 1

	result, err := f.validator.ValidateBatch(context.Background(), raw)
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	errs := result.Errors()
	if len(errs) != 1 || errs[0].Kind() != validation.KindInvalidSignature {
		t.Fatalf("expected a single InvalidSignature, got %v", result)
	}
}

// TestValidateBatch_Faults verifies collaborator faults abort the call.
func TestValidateBatch_Faults(t *testing.T) {
	f := newFixture(t)
	f.contracts.err = errFault

	_, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice"})))
	if !errors.Is(err, errFault) {
		t.Fatalf("expected contract fault, got %v", err)
	}

	f = newFixture(t)
	f.signatures.err = errFault

	_, err = f.validator.ValidateBatch(context.Background(), f.newBatch(t, f.newCreate(1, map[string]any{"username": "alice"})))
	if !errors.Is(err, errFault) {
		t.Fatalf("expected signature fault, got %v", err)
	}
}

// TestNewValidator_RequiresDeps verifies missing collaborators are rejected.
func TestNewValidator_RequiresDeps(t *testing.T) {
	if _, err := NewValidator(Deps{}); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}

// TestValidateBatch_GroupsConcurrently verifies several contracts are validated together.
func TestValidateBatch_GroupsConcurrently(t *testing.T) {
	f := newFixture(t)

	other := newProfileContract(t, identifier.Hash([]byte("bob")))
	f.contracts.contracts[other.ID()] = other

	second := f.newCreate(2, map[string]any{"username": "alice"})
	entropy := second[transition.TagEntropy].([]byte)
	second[transition.TagContractID] = other.ID().Bytes()
	second[transition.TagID] = identifier.DocumentID(other.ID(), f.owner, "profile", entropy).Bytes()

	result, err := f.validator.ValidateBatch(context.Background(), f.newBatch(t,
		f.newCreate(1, map[string]any{"username": "alice"}),
		second,
	))
	if err != nil {
		t.Fatalf("ValidateBatch failed: %v", err)
	}

	if !result.IsValid() {
		t.Fatalf("same username in different contracts must not collide, got %v", result)
	}

	if f.contracts.calls != 2 {
		t.Errorf("expected two contract fetches, got %d", f.contracts.calls)
	}
}
