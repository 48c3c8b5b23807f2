package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"DocBatch/internal/identifier"
	"DocBatch/internal/logger"
	"DocBatch/internal/storage"
)

// keyPrefix namespaces identity keys in storage.
const keyPrefix = "i:"

// ErrStaleRevision is returned when a stored identity has the same or a newer revision.
var ErrStaleRevision = errors.New("identity revision is not newer than the stored one")

// Lookup resolves identities by identifier. A nil identity with a nil error means
// the identity does not exist.
type Lookup interface {
	GetIdentity(ctx context.Context, id identifier.Identifier) (*Identity, error)
}

// Store persists identities as FlatBuffers records.
type Store struct {
	db *storage.Storage // db holds encoded identities
	mu sync.Mutex       // mu serializes revision checks with writes
}

// NewStore creates a store over db.
func NewStore(db *storage.Storage) *Store {
	return &Store{db: db}
}

// Put validates and stores ident. Replacing a stored identity requires a higher revision.
func (s *Store) Put(ident *Identity) error {
	if err := ident.Validate(); err != nil {
		return fmt.Errorf("identity %s:\n%w", ident.ID.Short(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.get(ident.ID)
	if err != nil {
		return err
	}

	if existing != nil && existing.Revision >= ident.Revision {
		return fmt.Errorf("identity %s revision %d:\n%w", ident.ID.Short(), ident.Revision, ErrStaleRevision)
	}

	if err := s.db.Set(key(ident.ID), ident.Encode()); err != nil {
		return fmt.Errorf("store identity %s:\n%w", ident.ID.Short(), err)
	}

	logger.Debug("identity stored", "id", ident.ID.Short(), "revision", ident.Revision, "keys", len(ident.PublicKeys))

	return nil
}

// GetIdentity returns the stored identity or nil when absent.
func (s *Store) GetIdentity(_ context.Context, id identifier.Identifier) (*Identity, error) {
	return s.get(id)
}

// get loads and decodes one identity.
func (s *Store) get(id identifier.Identifier) (*Identity, error) {
	data, err := s.db.Get(key(id))
	if err != nil {
		return nil, fmt.Errorf("load identity %s:\n%w", id.Short(), err)
	}

	if data == nil {
		return nil, nil
	}

	ident, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode identity %s:\n%w", id.Short(), err)
	}

	if ident.ID != id {
		return nil, fmt.Errorf("identity %s stored under %s:\n%w", ident.ID.Short(), id.Short(), ErrMalformed)
	}

	return ident, nil
}

// key returns the storage key of an identity.
func key(id identifier.Identifier) []byte {
	return append([]byte(keyPrefix), id.Bytes()...)
}
