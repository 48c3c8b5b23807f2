// Package contractstore persists registered contracts and resolves them for validation.
package contractstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"DocBatch/internal/batch"
	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/logger"
	"DocBatch/internal/storage"
	"DocBatch/internal/validation"
)

// keyPrefix namespaces contract keys in storage.
const keyPrefix = "c:"

// ErrIntegrity is returned when stored bytes do not hash to their identifier.
var ErrIntegrity = errors.New("contract does not match its identifier")

// MetaValidator checks a contract against its meta-schema.
type MetaValidator interface {
	ValidateContract(c *contract.Contract) (*validation.Result, error)
}

// Store persists contracts as zstd-compressed canonical bytes and serves them
// through a write-once cache.
type Store struct {
	db      *storage.Storage      // db holds compressed canonical encodings
	meta    MetaValidator         // meta validates contracts before registration
	remote  batch.ContractFetcher // remote resolves contracts missing locally; optional
	cache   *Cache                // cache holds resolved contracts
	encoder *zstd.Encoder         // encoder compresses canonical bytes
	decoder *zstd.Decoder         // decoder decompresses stored bytes
}

// Option configures a Store.
type Option func(*Store)

// WithRemote sets a fetcher consulted when a contract is not stored locally.
func WithRemote(f batch.ContractFetcher) Option {
	return func(s *Store) { s.remote = f }
}

// New creates a store over db.
func New(db *storage.Storage, meta MetaValidator, opts ...Option) (*Store, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}

	s := &Store{
		db:      db,
		meta:    meta,
		cache:   NewCache(),
		encoder: encoder,
		decoder: decoder,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Register validates c against its meta-schema and stores it. An invalid contract
// is reported in the result and nothing is stored. Registering an already stored
// contract is a no-op.
func (s *Store) Register(c *contract.Contract) (*validation.Result, error) {
	result, err := s.meta.ValidateContract(c)
	if err != nil {
		return nil, fmt.Errorf("validate contract %s:\n%w", c.ID().Short(), err)
	}

	if !result.IsValid() {
		return result, nil
	}

	data, err := c.Encode()
	if err != nil {
		return nil, err
	}

	wrote, err := s.db.SetIfAbsent(key(c.ID()), s.encoder.EncodeAll(data, nil))
	if err != nil {
		return nil, fmt.Errorf("store contract %s:\n%w", c.ID().Short(), err)
	}

	s.cache.Add(c)

	if wrote {
		logger.Info("contract registered",
			"id", c.ID().String(),
			"types", len(c.TypeNames()),
			"version", c.Version(),
		)
	}

	return result, nil
}

// FetchContract resolves a contract by identifier. It returns nil, nil when the
// contract is not registered.
func (s *Store) FetchContract(ctx context.Context, id identifier.Identifier) (*contract.Contract, error) {
	return s.cache.Load(id, func() (*contract.Contract, error) {
		return s.load(ctx, id)
	})
}

// load reads a contract from storage, then from the remote fetcher.
func (s *Store) load(ctx context.Context, id identifier.Identifier) (*contract.Contract, error) {
	compressed, err := s.db.Get(key(id))
	if err != nil {
		return nil, fmt.Errorf("read contract %s:\n%w", id.Short(), err)
	}

	if compressed == nil {
		if s.remote == nil {
			return nil, nil
		}

		c, err := s.remote.FetchContract(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch remote contract %s:\n%w", id.Short(), err)
		}

		if c != nil && c.ID() != id {
			return nil, fmt.Errorf("remote contract %s:\n%w", id.Short(), ErrIntegrity)
		}

		return c, nil
	}

	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress contract %s:\n%w", id.Short(), err)
	}

	return decodeVerified(id, data)
}

// decodeVerified decodes canonical bytes and checks they hash to id.
func decodeVerified(id identifier.Identifier, data []byte) (*contract.Contract, error) {
	if identifier.Hash(data) != id {
		return nil, fmt.Errorf("contract %s:\n%w", id.Short(), ErrIntegrity)
	}

	c, err := contract.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode contract %s:\n%w", id.Short(), err)
	}

	if c.ID() != id {
		return nil, fmt.Errorf("contract %s:\n%w", id.Short(), ErrIntegrity)
	}

	return c, nil
}

// IDs returns the identifiers of every locally stored contract, in key order.
func (s *Store) IDs() ([]identifier.Identifier, error) {
	var ids []identifier.Identifier

	err := s.db.IteratePrefix([]byte(keyPrefix), func(k, _ []byte) error {
		id, err := identifier.FromBytes(k[len(keyPrefix):])
		if err != nil {
			return fmt.Errorf("malformed contract key %x:\n%w", k, err)
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// CacheLen returns the number of cached contracts.
func (s *Store) CacheLen() int {
	return s.cache.Len()
}

// Close releases the compression resources. The storage is owned by the caller.
func (s *Store) Close() {
	s.encoder.Close()
	s.decoder.Close()
}

// key returns the storage key of a contract.
func key(id identifier.Identifier) []byte {
	return append([]byte(keyPrefix), id[:]...)
}
