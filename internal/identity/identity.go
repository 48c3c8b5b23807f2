// Package identity stores submitter identities and checks their existence and signatures.
package identity

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"DocBatch/internal/identifier"
	"DocBatch/internal/types"
)

var (
	// ErrDuplicateKey is returned when an identity holds two keys with the same id.
	ErrDuplicateKey = errors.New("duplicate public key id")

	// ErrMalformed is returned when stored bytes are not an identity record.
	ErrMalformed = errors.New("malformed identity record")
)

// PublicKey is one key of an identity.
type PublicKey struct {
	ID       uint32  // ID is referenced by signaturePublicKeyId
	Type     KeyType // Type selects the signature scheme
	Data     []byte  // Data is the encoded public key
	Disabled bool    // Disabled keys no longer verify signatures
}

// Identity is a submitter with its current public keys.
type Identity struct {
	ID         identifier.Identifier // ID is the identity identifier
	Revision   uint64                // Revision increases with every key change
	PublicKeys []PublicKey           // PublicKeys are the current keys
}

// Key returns the public key with the given id.
func (i *Identity) Key(id uint32) (*PublicKey, bool) {
	for n := range i.PublicKeys {
		if i.PublicKeys[n].ID == id {
			return &i.PublicKeys[n], true
		}
	}
	return nil, false
}

// Validate checks key ids are unique and key material matches its type.
func (i *Identity) Validate() error {
	seen := make(map[uint32]bool, len(i.PublicKeys))

	for _, k := range i.PublicKeys {
		if seen[k.ID] {
			return fmt.Errorf("key %d:\n%w", k.ID, ErrDuplicateKey)
		}
		seen[k.ID] = true

		if err := k.Type.CheckPublicKey(k.Data); err != nil {
			return fmt.Errorf("key %d:\n%w", k.ID, err)
		}
	}

	return nil
}

// Encode serializes the identity as a FlatBuffers table.
func (i *Identity) Encode() []byte {
	builder := flatbuffers.NewBuilder(256)

	// Tables must be built before the vector that references them
	keyOffsets := make([]flatbuffers.UOffsetT, len(i.PublicKeys))
	for n, k := range i.PublicKeys {
		dataVec := builder.CreateByteVector(k.Data)

		types.PublicKeyStart(builder)
		types.PublicKeyAddId(builder, k.ID)
		types.PublicKeyAddType(builder, byte(k.Type))
		types.PublicKeyAddData(builder, dataVec)
		types.PublicKeyAddDisabled(builder, k.Disabled)
		keyOffsets[n] = types.PublicKeyEnd(builder)
	}

	types.IdentityStartPublicKeysVector(builder, len(keyOffsets))
	for n := len(keyOffsets) - 1; n >= 0; n-- {
		builder.PrependUOffsetT(keyOffsets[n])
	}
	keysVec := builder.EndVector(len(keyOffsets))

	idVec := builder.CreateByteVector(i.ID.Bytes())

	types.IdentityStart(builder)
	types.IdentityAddId(builder, idVec)
	types.IdentityAddRevision(builder, i.Revision)
	types.IdentityAddPublicKeys(builder, keysVec)
	builder.Finish(types.IdentityEnd(builder))

	return builder.FinishedBytes()
}

// Decode parses an identity record.
func Decode(data []byte) (ident *Identity, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, ErrMalformed
	}

	// Out-of-range offsets panic inside the accessors
	defer func() {
		if r := recover(); r != nil {
			ident, err = nil, fmt.Errorf("%v:\n%w", r, ErrMalformed)
		}
	}()

	root := types.GetRootAsIdentity(data, 0)

	id, err := identifier.FromBytes(root.IdBytes())
	if err != nil {
		return nil, fmt.Errorf("identity id:\n%w", ErrMalformed)
	}

	ident = &Identity{
		ID:         id,
		Revision:   root.Revision(),
		PublicKeys: make([]PublicKey, root.PublicKeysLength()),
	}

	var key types.PublicKey
	for n := range ident.PublicKeys {
		root.PublicKeys(&key, n)

		ident.PublicKeys[n] = PublicKey{
			ID:       key.Id(),
			Type:     KeyType(key.Type()),
			Data:     append([]byte(nil), key.DataBytes()...),
			Disabled: key.Disabled(),
		}
	}

	return ident, nil
}
