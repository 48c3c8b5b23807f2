package contractstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
)

const (
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 1

	// checksumSize is the size of the trailing snapshot checksum.
	checksumSize = 32
)

// snapshotEntry is one contract of a snapshot.
type snapshotEntry struct {
	id   identifier.Identifier
	data []byte // data is the canonical encoding
}

// Export returns a compressed snapshot of every locally stored contract.
// Format before compression: version (4) | count (4) | entries | blake3 checksum (32),
// each entry being id (32) | length (4) | canonical bytes. Entries are sorted by id.
func (s *Store) Export() ([]byte, error) {
	entries, err := s.collect()
	if err != nil {
		return nil, fmt.Errorf("collect contracts:\n%w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].id[:], entries[j].id[:]) < 0
	})

	var body bytes.Buffer
	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], snapshotVersion)
	body.Write(buf[:])

	binary.BigEndian.PutUint32(buf[:], uint32(len(entries)))
	body.Write(buf[:])

	for _, e := range entries {
		body.Write(e.id[:])
		binary.BigEndian.PutUint32(buf[:], uint32(len(e.data)))
		body.Write(buf[:])
		body.Write(e.data)
	}

	checksum := blake3.Sum256(body.Bytes())
	body.Write(checksum[:])

	return s.encoder.EncodeAll(body.Bytes(), nil), nil
}

// Import registers every contract of a snapshot produced by Export and returns the
// number of contracts read. Each contract is meta-validated as on registration; the
// first invalid or corrupt entry aborts the import.
func (s *Store) Import(snapshot []byte) (int, error) {
	data, err := s.decoder.DecodeAll(snapshot, nil)
	if err != nil {
		return 0, fmt.Errorf("decompress snapshot:\n%w", err)
	}

	entries, err := parseSnapshot(data)
	if err != nil {
		return 0, err
	}

	for _, e := range entries {
		c, err := decodeVerified(e.id, e.data)
		if err != nil {
			return 0, err
		}

		result, err := s.Register(c)
		if err != nil {
			return 0, err
		}

		if !result.IsValid() {
			return 0, fmt.Errorf("contract %s rejected: %s", e.id.Short(), result)
		}
	}

	return len(entries), nil
}

// collect reads every stored contract as canonical bytes.
func (s *Store) collect() ([]snapshotEntry, error) {
	var entries []snapshotEntry

	err := s.db.IteratePrefix([]byte(keyPrefix), func(k, v []byte) error {
		id, err := identifier.FromBytes(k[len(keyPrefix):])
		if err != nil {
			return fmt.Errorf("malformed contract key %x:\n%w", k, err)
		}

		data, err := s.decoder.DecodeAll(v, nil)
		if err != nil {
			return fmt.Errorf("decompress contract %s:\n%w", id.Short(), err)
		}

		entries = append(entries, snapshotEntry{id: id, data: data})

		return nil
	})

	return entries, err
}

// parseSnapshot verifies the checksum and splits a snapshot body into entries.
func parseSnapshot(data []byte) ([]snapshotEntry, error) {
	if len(data) < 8+checksumSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}

	body, stored := data[:len(data)-checksumSize], data[len(data)-checksumSize:]

	computed := blake3.Sum256(body)
	if !bytes.Equal(computed[:], stored) {
		return nil, fmt.Errorf("snapshot checksum mismatch")
	}

	if v := binary.BigEndian.Uint32(body[:4]); v != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}

	count := binary.BigEndian.Uint32(body[4:8])
	body = body[8:]

	entries := make([]snapshotEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(body) < identifier.Size+4 {
			return nil, fmt.Errorf("truncated entry %d", i)
		}

		var e snapshotEntry
		copy(e.id[:], body[:identifier.Size])

		n := binary.BigEndian.Uint32(body[identifier.Size : identifier.Size+4])
		body = body[identifier.Size+4:]

		if uint32(len(body)) < n {
			return nil, fmt.Errorf("truncated entry %d", i)
		}

		e.data = body[:n]
		body = body[n:]

		entries = append(entries, e)
	}

	if len(body) != 0 {
		return nil, fmt.Errorf("%d trailing bytes in snapshot", len(body))
	}

	return entries, nil
}

// Contracts returns every stored contract decoded, sorted by identifier.
func (s *Store) Contracts() ([]*contract.Contract, error) {
	entries, err := s.collect()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].id[:], entries[j].id[:]) < 0
	})

	out := make([]*contract.Contract, 0, len(entries))
	for _, e := range entries {
		c, err := decodeVerified(e.id, e.data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, nil
}
