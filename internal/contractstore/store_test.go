package contractstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/schema"
	"DocBatch/internal/storage"
)

// newTestStore opens a store over an in-memory database.
func newTestStore(t *testing.T, opts ...Option) (*Store, *storage.Storage) {
	t.Helper()

	db, err := storage.Open(storage.Options{InMemory: true})
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}

	s, err := New(db, schema.NewEngine(0), opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
		db.Close()
	})

	return s, db
}

// newNoteContract builds a valid contract; seed varies its owner.
func newNoteContract(t *testing.T, seed string) *contract.Contract {
	t.Helper()

	c, err := contract.New(identifier.Hash([]byte(seed)), map[string]map[string]any{
		"note": {
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		},
	})
	if err != nil {
		t.Fatalf("contract.New failed: %v", err)
	}

	return c
}

// countingFetcher counts remote fetches.
type countingFetcher struct {
	contract *contract.Contract
	calls    atomic.Int32
	release  chan struct{}
}

func (f *countingFetcher) FetchContract(_ context.Context, _ identifier.Identifier) (*contract.Contract, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.contract, nil
}

// TestRegisterAndFetch verifies registered contracts resolve to a shared instance.
func TestRegisterAndFetch(t *testing.T) {
	s, _ := newTestStore(t)
	c := newNoteContract(t, "alice")

	result, err := s.Register(c)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !result.IsValid() {
		t.Fatalf("expected valid registration, got %v", result)
	}

	got, err := s.FetchContract(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("FetchContract failed: %v", err)
	}

	if got != c {
		t.Error("registered contract should be served from the cache")
	}

	if _, err := s.Register(c); err != nil {
		t.Errorf("re-registration failed: %v", err)
	}
}

// TestRegister_Invalid verifies contracts failing the meta-schema are not stored.
func TestRegister_Invalid(t *testing.T) {
	s, _ := newTestStore(t)

	c, _ := contract.New(identifier.Zero, map[string]map[string]any{"note": {"type": "object"}})

	result, err := s.Register(c)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.IsValid() {
		t.Fatal("expected meta-schema errors")
	}

	got, err := s.FetchContract(context.Background(), c.ID())
	if err != nil || got != nil {
		t.Errorf("invalid contract was stored: %v, %v", got, err)
	}
}

// TestFetch_Absent verifies unknown ids resolve to nil.
func TestFetch_Absent(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.FetchContract(context.Background(), identifier.Hash([]byte("nothing")))
	if err != nil || got != nil {
		t.Errorf("expected nil, nil; got %v, %v", got, err)
	}

	if s.CacheLen() != 0 {
		t.Error("absent contracts must not be cached")
	}
}

// TestFetch_Persisted verifies contracts survive a restart.
func TestFetch_Persisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	c := newNoteContract(t, "alice")

	db, err := storage.New(path)
	if err != nil {
		t.Fatalf("storage.New failed: %v", err)
	}

	s, _ := New(db, schema.NewEngine(0))
	if _, err := s.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	s.Close()
	db.Close()

	db, err = storage.New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	s, _ = New(db, schema.NewEngine(0))
	defer s.Close()

	got, err := s.FetchContract(context.Background(), c.ID())
	if err != nil {
		t.Fatalf("FetchContract failed: %v", err)
	}

	if got == nil || got.ID() != c.ID() {
		t.Fatalf("expected contract %s after restart, got %v", c.ID(), got)
	}

	ids, err := s.IDs()
	if err != nil || len(ids) != 1 || ids[0] != c.ID() {
		t.Errorf("IDs: got %v, %v", ids, err)
	}
}

// TestFetch_Integrity verifies bytes that do not hash to their key are a fault.
func TestFetch_Integrity(t *testing.T) {
	s, db := newTestStore(t)

	a := newNoteContract(t, "alice")
	b := newNoteContract(t, "bob")

	data, _ := b.Encode()
	if err := db.Set(key(a.ID()), s.encoder.EncodeAll(data, nil)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, err := s.FetchContract(context.Background(), a.ID())
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

// TestFetch_SingleLoad verifies concurrent misses share one load.
func TestFetch_SingleLoad(t *testing.T) {
	c := newNoteContract(t, "remote")
	remote := &countingFetcher{contract: c, release: make(chan struct{})}

	s, _ := newTestStore(t, WithRemote(remote))

	var wg sync.WaitGroup
	results := make([]*contract.Contract, 8)

	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = s.FetchContract(context.Background(), c.ID())
		}()
	}

	for remote.calls.Load() == 0 {
		// wait until the first load is in flight
	}
	close(remote.release)
	wg.Wait()

	for i, got := range results {
		if got != c {
			t.Errorf("result %d: got %v", i, got)
		}
	}

	if n := remote.calls.Load(); n < 1 || n > int32(len(results)) {
		t.Errorf("unexpected number of loads: %d", n)
	}

	got, _ := s.FetchContract(context.Background(), c.ID())
	if got != c || remote.calls.Load() > int32(len(results)) {
		t.Error("cached contract was loaded again")
	}
}

// TestFetch_RemoteMismatch verifies a remote answer for another id is a fault.
func TestFetch_RemoteMismatch(t *testing.T) {
	remote := &countingFetcher{contract: newNoteContract(t, "other")}
	s, _ := newTestStore(t, WithRemote(remote))

	_, err := s.FetchContract(context.Background(), identifier.Hash([]byte("wanted")))
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

// TestCache_WriteOnce verifies the first cached instance is kept.
func TestCache_WriteOnce(t *testing.T) {
	cache := NewCache()

	a := newNoteContract(t, "alice")
	again, _ := contract.Decode(mustEncode(t, a))

	if cache.Add(a) != a {
		t.Fatal("first Add should return its argument")
	}

	if cache.Add(again) != a {
		t.Error("second Add replaced the cached instance")
	}
}

// mustEncode encodes c or fails the test.
func mustEncode(t *testing.T, c *contract.Contract) []byte {
	t.Helper()

	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	return data
}
