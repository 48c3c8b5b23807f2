// Package batch validates signed batches of document transitions.
package batch

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/transition"
	"DocBatch/internal/validation"
)

// Envelope fields of a documents batch.
const (
	FieldProtocolVersion      = "protocolVersion"
	FieldType                 = "type"
	FieldOwnerID              = "ownerId"
	FieldTransitions          = "transitions"
	FieldSignaturePublicKeyID = "signaturePublicKeyId"
	FieldSignature            = "signature"
)

const (
	// TypeDocumentsBatch is the envelope type of a documents batch.
	TypeDocumentsBatch = 1

	// ProtocolVersion is the envelope version produced by this node.
	ProtocolVersion = 0

	// MaxTransitions is the largest number of transitions in one batch.
	MaxTransitions = 10
)

// Raw is an untyped batch envelope as received on the wire.
type Raw map[string]any

// ContractFetcher resolves contracts by identifier. A nil contract with a nil
// error means the contract does not exist.
type ContractFetcher interface {
	FetchContract(ctx context.Context, id identifier.Identifier) (*contract.Contract, error)
}

// IdentityChecker reports whether an identity exists.
type IdentityChecker interface {
	CheckIdentity(ctx context.Context, id identifier.Identifier) (*validation.Result, error)
}

// Signable is a payload carrying a detached signature.
type Signable interface {
	SignaturePublicKeyID() uint32
	Signature() []byte
	SigningDigest() ([]byte, error)
}

// SignatureVerifier verifies a signed payload against the signer's current keys.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, payload Signable, signer identifier.Identifier) (*validation.Result, error)
}

// SchemaValidator evaluates documents against JSON schemas.
type SchemaValidator interface {
	Validate(ref string, doc any, aux map[string]any) (*validation.Result, error)
}

// Batch is the typed view of an envelope that passed schema validation.
type Batch struct {
	raw         Raw                   // raw is the envelope the view was built from
	ownerID     identifier.Identifier // ownerID is the submitting identity
	transitions []transition.Raw      // transitions are the raw transition records, in order
	keyID       uint32                // keyID selects the signing key of the owner
	signature   []byte                // signature is the detached batch signature
}

// FromRaw builds the typed view of an envelope.
func FromRaw(raw Raw) (*Batch, error) {
	ownerBytes, ok := transition.BytesValue(raw[FieldOwnerID])
	if !ok {
		return nil, fmt.Errorf("missing or malformed %s", FieldOwnerID)
	}

	ownerID, err := identifier.FromBytes(ownerBytes)
	if err != nil {
		return nil, fmt.Errorf("parse %s:\n%w", FieldOwnerID, err)
	}

	transitions, err := rawTransitions(raw[FieldTransitions])
	if err != nil {
		return nil, err
	}

	b := &Batch{raw: raw, ownerID: ownerID, transitions: transitions}

	if v, ok := raw[FieldSignaturePublicKeyID]; ok {
		keyID, err := toUint32(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s:\n%w", FieldSignaturePublicKeyID, err)
		}
		b.keyID = keyID
	}

	if sig, ok := transition.BytesValue(raw[FieldSignature]); ok {
		b.signature = sig
	}

	return b, nil
}

// OwnerID returns the submitting identity.
func (b *Batch) OwnerID() identifier.Identifier { return b.ownerID }

// Transitions returns the raw transition records.
func (b *Batch) Transitions() []transition.Raw { return b.transitions }

// SignaturePublicKeyID returns the id of the key that signed the batch.
func (b *Batch) SignaturePublicKeyID() uint32 { return b.keyID }

// Signature returns the detached signature.
func (b *Batch) Signature() []byte { return b.signature }

// SigningDigest returns the digest covered by the signature.
func (b *Batch) SigningDigest() ([]byte, error) {
	return SigningDigest(b.raw)
}

// SigningDigest hashes the canonical JSON of raw without its signature fields.
func SigningDigest(raw Raw) ([]byte, error) {
	unsigned := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == FieldSignature || k == FieldSignaturePublicKeyID {
			continue
		}
		unsigned[k] = v
	}

	data, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("encode batch:\n%w", err)
	}

	return identifier.Hash(data).Bytes(), nil
}

// DecodeWire parses a JSON envelope, decoding base64 binary fields to bytes.
// Binary values that are not valid base64 are kept as strings so validation reports them.
func DecodeWire(data []byte) (Raw, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw Raw
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode batch:\n%w", err)
	}

	if raw == nil {
		return nil, fmt.Errorf("decode batch: not an object")
	}

	for _, field := range []string{FieldOwnerID, FieldSignature} {
		if s, ok := raw[field].(string); ok {
			if b, err := base64.StdEncoding.DecodeString(s); err == nil {
				raw[field] = b
			}
		}
	}

	if list, ok := raw[FieldTransitions].([]any); ok {
		for i, item := range list {
			if m, ok := item.(map[string]any); ok {
				list[i] = map[string]any(transition.DecodeBinary(transition.Raw(m)))
			}
		}
	}

	return raw, nil
}

// rawTransitions converts the transitions field to raw records.
func rawTransitions(v any) ([]transition.Raw, error) {
	switch list := v.(type) {
	case []transition.Raw:
		return list, nil
	case []map[string]any:
		out := make([]transition.Raw, len(list))
		for i, m := range list {
			out[i] = transition.Raw(m)
		}
		return out, nil
	case []any:
		out := make([]transition.Raw, len(list))
		for i, item := range list {
			switch m := item.(type) {
			case map[string]any:
				out[i] = transition.Raw(m)
			case transition.Raw:
				out[i] = m
			default:
				return nil, fmt.Errorf("transition %d is not an object", i)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("missing or malformed %s", FieldTransitions)
	}
}

// toUint32 converts a decoded number to uint32.
func toUint32(v any) (uint32, error) {
	n, err := transition.IntValue(v)
	if err != nil {
		return 0, err
	}

	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("out of range: %d", n)
	}

	return uint32(n), nil
}
