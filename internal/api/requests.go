package api

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"DocBatch/internal/identifier"
	"DocBatch/internal/identity"
)

// maxPublicKeys is the maximum number of keys accepted per identity.
const maxPublicKeys = 32

// identityRequest is the JSON body of POST /identities.
type identityRequest struct {
	ID         identifier.Identifier `json:"id"`
	Revision   uint64                `json:"revision"`
	PublicKeys []publicKeyRequest    `json:"publicKeys"`
}

// publicKeyRequest is one key of an identity request. Data is base64.
type publicKeyRequest struct {
	ID       uint32 `json:"id"`
	Type     string `json:"type"`
	Data     []byte `json:"data"`
	Disabled bool   `json:"disabled"`
}

// decodeIdentity parses and checks an identity request.
func decodeIdentity(body []byte) (*identity.Identity, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var req identityRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode identity:\n%w", err)
	}

	if err := validateIdentityRequest(&req); err != nil {
		return nil, err
	}

	ident := &identity.Identity{
		ID:         req.ID,
		Revision:   req.Revision,
		PublicKeys: make([]identity.PublicKey, len(req.PublicKeys)),
	}

	for i, k := range req.PublicKeys {
		kt, err := identity.ParseKeyType(k.Type)
		if err != nil {
			return nil, fmt.Errorf("key %d:\n%w", k.ID, err)
		}

		ident.PublicKeys[i] = identity.PublicKey{ID: k.ID, Type: kt, Data: k.Data, Disabled: k.Disabled}
	}

	return ident, nil
}

// validateIdentityRequest checks field presence and sizes.
func validateIdentityRequest(req *identityRequest) error {
	if req.ID.IsZero() {
		return fmt.Errorf("identity id is required")
	}

	if req.Revision == 0 {
		return fmt.Errorf("revision must be at least 1")
	}

	if len(req.PublicKeys) == 0 {
		return fmt.Errorf("at least one public key is required")
	}

	if len(req.PublicKeys) > maxPublicKeys {
		return fmt.Errorf("too many public keys: %d > %d", len(req.PublicKeys), maxPublicKeys)
	}

	for _, k := range req.PublicKeys {
		if len(k.Data) == 0 {
			return fmt.Errorf("key %d has no data", k.ID)
		}
	}

	return nil
}
