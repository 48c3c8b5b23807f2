package batch

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/schema"
	"DocBatch/internal/transition"
	"DocBatch/internal/validation"
)

// mockContracts is an in-memory ContractFetcher.
type mockContracts struct {
	mu        sync.Mutex
	contracts map[identifier.Identifier]*contract.Contract
	err       error
	calls     int
}

func (m *mockContracts) FetchContract(_ context.Context, id identifier.Identifier) (*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	return m.contracts[id], nil
}

// mockIdentities records identity checks.
type mockIdentities struct {
	known map[identifier.Identifier]bool
	calls int
}

func (m *mockIdentities) CheckIdentity(_ context.Context, id identifier.Identifier) (*validation.Result, error) {
	m.calls++
	if !m.known[id] {
		return validation.NewResult(&validation.IdentityNotFoundError{IdentityID: id.Bytes()}), nil
	}
	return validation.NewResult(), nil
}

// mockSignatures accepts signatures equal to the signing digest padded to 64 bytes.
type mockSignatures struct {
	calls int
	err   error
}

func (m *mockSignatures) VerifySignature(_ context.Context, payload Signable, _ identifier.Identifier) (*validation.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	digest, err := payload.SigningDigest()
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(payload.Signature(), fakeSignature(digest)) {
		return validation.NewResult(&validation.InvalidSignatureError{PublicKeyID: payload.SignaturePublicKeyID()}), nil
	}

	return validation.NewResult(), nil
}

// fakeSignature builds the signature mockSignatures accepts.
func fakeSignature(digest []byte) []byte {
	return append(append([]byte(nil), digest...), make([]byte, 64-len(digest))...)
}

// fixture bundles a validator with its collaborators.
type fixture struct {
	validator  *Validator
	contract   *contract.Contract
	owner      identifier.Identifier
	contracts  *mockContracts
	identities *mockIdentities
	signatures *mockSignatures
}

// newProfileContract builds a contract with a unique index on username.
func newProfileContract(t *testing.T, owner identifier.Identifier) *contract.Contract {
	t.Helper()

	c, err := contract.New(owner, map[string]map[string]any{
		"profile": {
			"type": "object",
			"indices": []any{
				map[string]any{"name": "byUsername", "unique": true, "properties": []any{map[string]any{"username": "asc"}}},
				map[string]any{"name": "byCity", "properties": []any{map[string]any{"city": "asc"}}},
			},
			"properties": map[string]any{
				"username": map[string]any{"type": "string", "maxLength": 16},
				"city":     map[string]any{"type": "string"},
			},
			"required":             []any{"username"},
			"additionalProperties": false,
		},
	})
	if err != nil {
		t.Fatalf("contract.New failed: %v", err)
	}

	return c
}

// newFixture builds a validator with one registered contract and a known owner.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	owner := identifier.Hash([]byte("alice"))
	c := newProfileContract(t, owner)

	f := &fixture{
		contract:   c,
		owner:      owner,
		contracts:  &mockContracts{contracts: map[identifier.Identifier]*contract.Contract{c.ID(): c}},
		identities: &mockIdentities{known: map[identifier.Identifier]bool{owner: true}},
		signatures: &mockSignatures{},
	}

	v, err := NewValidator(Deps{
		Contracts:  f.contracts,
		Identities: f.identities,
		Signatures: f.signatures,
		Schemas:    schema.NewEngine(0),
	})
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	f.validator = v

	return f
}

// newCreate builds a create transition with a correctly derived identifier.
func (f *fixture) newCreate(seed byte, fields map[string]any) transition.Raw {
	entropy := bytes.Repeat([]byte{seed}, 32)
	id := identifier.DocumentID(f.contract.ID(), f.owner, "profile", entropy)

	raw := transition.Raw{
		transition.TagID:         id.Bytes(),
		transition.TagType:       "profile",
		transition.TagAction:     0,
		transition.TagContractID: f.contract.ID().Bytes(),
		transition.TagEntropy:    entropy,
	}

	for k, v := range fields {
		raw[k] = v
	}

	return raw
}

// newReplace builds a replace transition.
func (f *fixture) newReplace(id identifier.Identifier, fields map[string]any) transition.Raw {
	raw := transition.Raw{
		transition.TagID:         id.Bytes(),
		transition.TagType:       "profile",
		transition.TagAction:     1,
		transition.TagContractID: f.contract.ID().Bytes(),
		transition.TagRevision:   2,
	}

	for k, v := range fields {
		raw[k] = v
	}

	return raw
}

// newDelete builds a delete transition.
func (f *fixture) newDelete(id identifier.Identifier) transition.Raw {
	return transition.Raw{
		transition.TagID:         id.Bytes(),
		transition.TagType:       "profile",
		transition.TagAction:     3,
		transition.TagContractID: f.contract.ID().Bytes(),
	}
}

// newBatch wraps transitions in a signed envelope.
func (f *fixture) newBatch(t *testing.T, transitions ...transition.Raw) Raw {
	t.Helper()

	list := make([]any, len(transitions))
	for i, tr := range transitions {
		list[i] = map[string]any(tr)
	}

	raw := Raw{
		FieldProtocolVersion:      ProtocolVersion,
		FieldType:                 TypeDocumentsBatch,
		FieldOwnerID:              f.owner.Bytes(),
		FieldTransitions:          list,
		FieldSignaturePublicKeyID: 0,
	}

	digest, err := SigningDigest(raw)
	if err != nil {
		t.Fatalf("SigningDigest failed: %v", err)
	}

	raw[FieldSignature] = fakeSignature(digest)

	return raw
}

// sign recomputes the envelope signature after raw was modified.
func (f *fixture) sign(t *testing.T, raw Raw) Raw {
	t.Helper()

	digest, err := SigningDigest(raw)
	if err != nil {
		t.Fatalf("SigningDigest failed: %v", err)
	}

	raw[FieldSignature] = fakeSignature(digest)

	return raw
}

// numberArray spells b as a JSON array of numbers, as a decoder produces it.
func numberArray(b []byte) []any {
	out := make([]any, len(b))
	for i, x := range b {
		out[i] = json.Number(strconv.Itoa(int(x)))
	}
	return out
}

// errFault is a collaborator outage.
var errFault = errors.New("collaborator unavailable")
