package client

import (
	"crypto/rand"
	"fmt"

	"DocBatch/internal/batch"
	"DocBatch/internal/identifier"
	"DocBatch/internal/identity"
	"DocBatch/internal/transition"
)

// entropySize is the size of the random input of a document id.
const entropySize = 32

// Wallet holds an owner identity and one signing key.
type Wallet struct {
	owner  identifier.Identifier // owner is the submitting identity
	keyID  uint32                // keyID is the identity key the signer holds
	signer identity.Signer       // signer signs batch digests
}

// NewWallet creates a wallet with a random owner id and a fresh ed25519 key.
func NewWallet() (*Wallet, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("generate owner id:\n%w", err)
	}

	signer, err := identity.GenerateED25519()
	if err != nil {
		return nil, err
	}

	return NewWalletWithSigner(identifier.Hash(seed[:]), 0, signer), nil
}

// NewWalletWithSigner creates a wallet signing as owner with the key keyID.
func NewWalletWithSigner(owner identifier.Identifier, keyID uint32, signer identity.Signer) *Wallet {
	return &Wallet{owner: owner, keyID: keyID, signer: signer}
}

// Owner returns the wallet's identity id.
func (w *Wallet) Owner() identifier.Identifier {
	return w.owner
}

// Identity returns the identity record holding the wallet key, at revision 1.
func (w *Wallet) Identity() *identity.Identity {
	return &identity.Identity{
		ID:       w.owner,
		Revision: 1,
		PublicKeys: []identity.PublicKey{
			{ID: w.keyID, Type: w.signer.KeyType(), Data: w.signer.PublicKey()},
		},
	}
}

// Create builds a create transition with fresh entropy and its derived document id.
func (w *Wallet) Create(contractID identifier.Identifier, docType string, data map[string]any) (transition.Raw, error) {
	entropy := make([]byte, entropySize)
	if _, err := rand.Read(entropy); err != nil {
		return nil, fmt.Errorf("generate entropy:\n%w", err)
	}

	tr := &transition.Create{
		Base: transition.Base{
			ID:         identifier.DocumentID(contractID, w.owner, docType, entropy),
			Type:       docType,
			Action:     transition.ActionCreate,
			ContractID: contractID,
		},
		Entropy: entropy,
		Data:    data,
	}

	return transition.ToRaw(tr), nil
}

// Replace builds a replace transition for an existing document.
func (w *Wallet) Replace(contractID, docID identifier.Identifier, docType string, revision int64, data map[string]any) transition.Raw {
	return transition.ToRaw(&transition.Replace{
		Base: transition.Base{
			ID:         docID,
			Type:       docType,
			Action:     transition.ActionReplace,
			ContractID: contractID,
		},
		Revision: revision,
		Data:     data,
	})
}

// Delete builds a delete transition.
func (w *Wallet) Delete(contractID, docID identifier.Identifier, docType string) transition.Raw {
	return transition.ToRaw(&transition.Delete{
		Base: transition.Base{
			ID:         docID,
			Type:       docType,
			Action:     transition.ActionDelete,
			ContractID: contractID,
		},
	})
}

// SignBatch wraps transitions in an envelope signed by the wallet key.
func (w *Wallet) SignBatch(transitions ...transition.Raw) (batch.Raw, error) {
	list := make([]any, len(transitions))
	for i, tr := range transitions {
		list[i] = map[string]any(tr)
	}

	raw := batch.Raw{
		batch.FieldProtocolVersion:      batch.ProtocolVersion,
		batch.FieldType:                 batch.TypeDocumentsBatch,
		batch.FieldOwnerID:              w.owner.Bytes(),
		batch.FieldTransitions:          list,
		batch.FieldSignaturePublicKeyID: w.keyID,
	}

	digest, err := batch.SigningDigest(raw)
	if err != nil {
		return nil, err
	}

	sig, err := w.signer.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("sign batch:\n%w", err)
	}

	raw[batch.FieldSignature] = sig

	return raw, nil
}
