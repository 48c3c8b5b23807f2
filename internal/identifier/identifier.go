package identifier

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
)

// Size is the byte length of an identifier.
const Size = 32

// Identifier is a 32-byte content or entity identifier.
type Identifier [Size]byte

// Zero is the all-zero identifier.
var Zero Identifier

// FromBytes converts a byte slice to an Identifier.
func FromBytes(b []byte) (Identifier, error) {
	var id Identifier
	if len(b) != Size {
		return id, fmt.Errorf("invalid identifier size: got %d, want %d", len(b), Size)
	}

	copy(id[:], b)

	return id, nil
}

// Parse decodes the base58 text form of an identifier.
func Parse(s string) (Identifier, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Identifier{}, fmt.Errorf("decode base58:\n%w", err)
	}

	return FromBytes(b)
}

// Hash returns the blake3 hash of the concatenated parts.
func Hash(parts ...[]byte) Identifier {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}

	var id Identifier
	h.Sum(id[:0])

	return id
}

// DocumentID derives the identifier of a document from the contract it belongs to,
// its owner, its type and the client-chosen entropy.
func DocumentID(contractID, ownerID Identifier, docType string, entropy []byte) Identifier {
	return Hash(contractID[:], ownerID[:], []byte(docType), entropy)
}

// Bytes returns a copy of the identifier bytes.
func (id Identifier) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

// String returns the base58 form.
func (id Identifier) String() string {
	return base58.Encode(id[:])
}

// Hex returns the lowercase hex form.
func (id Identifier) Hex() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters, for logs.
func (id Identifier) Short() string {
	return hex.EncodeToString(id[:4])
}

// IsZero reports whether the identifier is all zeros.
func (id Identifier) IsZero() bool {
	return id == Zero
}

// Equal reports whether b holds exactly the identifier bytes.
func (id Identifier) Equal(b []byte) bool {
	return bytes.Equal(id[:], b)
}

// CID returns a CIDv1 (raw codec) wrapping the identifier as a blake3 multihash.
func (id Identifier) CID() (cid.Cid, error) {
	mh, err := multihash.Encode(id[:], multihash.BLAKE3)
	if err != nil {
		return cid.Undef, fmt.Errorf("encode multihash:\n%w", err)
	}

	return cid.NewCidV1(cid.Raw, mh), nil
}

// FromCID extracts the identifier from a CID produced by CID.
func FromCID(c cid.Cid) (Identifier, error) {
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return Identifier{}, fmt.Errorf("decode multihash:\n%w", err)
	}

	if decoded.Code != multihash.BLAKE3 {
		return Identifier{}, fmt.Errorf("unexpected multihash code: 0x%x", decoded.Code)
	}

	return FromBytes(decoded.Digest)
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}
