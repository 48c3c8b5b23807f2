package identity

import (
	"context"
	"fmt"

	"DocBatch/internal/batch"
	"DocBatch/internal/identifier"
	"DocBatch/internal/validation"
)

// Checker reports whether identities exist.
type Checker struct {
	identities Lookup // identities resolves submitters
}

// NewChecker creates a checker over identities.
func NewChecker(identities Lookup) *Checker {
	return &Checker{identities: identities}
}

// CheckIdentity reports IdentityNotFound when id is unknown.
func (c *Checker) CheckIdentity(ctx context.Context, id identifier.Identifier) (*validation.Result, error) {
	ident, err := c.identities.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}

	if ident == nil {
		return validation.NewResult(&validation.IdentityNotFoundError{IdentityID: id.Bytes()}), nil
	}

	return validation.NewResult(), nil
}

// Verifier checks detached signatures against the signer's current keys.
type Verifier struct {
	identities Lookup // identities resolves signers
}

// NewVerifier creates a verifier over identities.
func NewVerifier(identities Lookup) *Verifier {
	return &Verifier{identities: identities}
}

// VerifySignature verifies payload's signature with the signer key it names.
func (v *Verifier) VerifySignature(ctx context.Context, payload batch.Signable, signer identifier.Identifier) (*validation.Result, error) {
	keyID := payload.SignaturePublicKeyID()

	// 1. Resolve the signer
	ident, err := v.identities.GetIdentity(ctx, signer)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return validation.NewResult(&validation.IdentityNotFoundError{IdentityID: signer.Bytes()}), nil
	}

	// 2. Select the key
	key, ok := ident.Key(keyID)
	if !ok {
		return validation.NewResult(&validation.MissingPublicKeyError{PublicKeyID: keyID}), nil
	}
	if key.Disabled {
		return validation.NewResult(&validation.PublicKeyDisabledError{PublicKeyID: keyID}), nil
	}

	// 3. Verify over the signing digest
	digest, err := payload.SigningDigest()
	if err != nil {
		return nil, fmt.Errorf("compute signing digest:\n%w", err)
	}

	if !key.Type.Verify(key.Data, digest, payload.Signature()) {
		return validation.NewResult(&validation.InvalidSignatureError{
			PublicKeyID: keyID,
			Reason:      key.Type.String() + " verification failed",
		}), nil
	}

	return validation.NewResult(), nil
}
