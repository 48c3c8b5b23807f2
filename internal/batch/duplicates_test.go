package batch

import (
	"testing"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/transition"
)

// TestFindDuplicatesByID verifies every member of a group is reported regardless of action.
func TestFindDuplicatesByID(t *testing.T) {
	f := newFixture(t)

	id := identifier.Hash([]byte("doc"))
	a := f.newReplace(id, map[string]any{"username": "a"})
	b := f.newCreate(1, map[string]any{"username": "b"})
	c := f.newDelete(id)

	found := FindDuplicatesByID([]transition.Raw{a, b, c})
	if len(found) != 2 {
		t.Fatalf("expected 2 duplicates, got %d", len(found))
	}

	if found[0][transition.TagAction] != 1 || found[1][transition.TagAction] != 3 {
		t.Error("duplicates are not in input order")
	}
}

// TestFindDuplicatesByID_TypeScoped verifies equal ids of different types do not collide.
func TestFindDuplicatesByID_TypeScoped(t *testing.T) {
	f := newFixture(t)

	id := identifier.Hash([]byte("doc"))
	a := f.newDelete(id)
	b := f.newDelete(id)
	b[transition.TagType] = "other"

	if found := FindDuplicatesByID([]transition.Raw{a, b}); found != nil {
		t.Errorf("expected no duplicates, got %d", len(found))
	}
}

// TestFindDuplicatesByIndices verifies unique index collisions and their exclusions.
func TestFindDuplicatesByIndices(t *testing.T) {
	f := newFixture(t)
	contracts := map[identifier.Identifier]*contract.Contract{f.contract.ID(): f.contract}

	cases := []struct {
		name  string
		raws  []transition.Raw
		count int
	}{
		{
			name:  "unique collision",
			raws:  []transition.Raw{f.newCreate(1, map[string]any{"username": "x"}), f.newCreate(2, map[string]any{"username": "x"})},
			count: 2,
		},
		{
			name:  "distinct values",
			raws:  []transition.Raw{f.newCreate(1, map[string]any{"username": "x"}), f.newCreate(2, map[string]any{"username": "y"})},
			count: 0,
		},
		{
			name: "non-unique index",
			raws: []transition.Raw{
				f.newCreate(1, map[string]any{"username": "x", "city": "Paris"}),
				f.newCreate(2, map[string]any{"username": "y", "city": "Paris"}),
			},
			count: 0,
		},
		{
			name:  "delete ignored",
			raws:  []transition.Raw{f.newCreate(1, map[string]any{"username": "x"}), f.newDelete(identifier.Hash([]byte("d")))},
			count: 0,
		},
		{
			name:  "missing value ignored",
			raws:  []transition.Raw{f.newCreate(1, nil), f.newCreate(2, nil)},
			count: 0,
		},
		{
			name: "create and replace collide",
			raws: []transition.Raw{
				f.newCreate(1, map[string]any{"username": "x"}),
				f.newReplace(identifier.Hash([]byte("r")), map[string]any{"username": "x"}),
				f.newCreate(3, map[string]any{"username": "x"}),
			},
			count: 3,
		},
	}

	for _, tc := range cases {
		found := FindDuplicatesByIndices(tc.raws, contracts, f.owner)
		if len(found) != tc.count {
			t.Errorf("%s: expected %d duplicates, got %d", tc.name, tc.count, len(found))
		}
	}
}

// TestFindDuplicatesByIndices_UnknownContract verifies transitions of unresolved contracts are skipped.
func TestFindDuplicatesByIndices_UnknownContract(t *testing.T) {
	f := newFixture(t)

	raws := []transition.Raw{f.newCreate(1, map[string]any{"username": "x"}), f.newCreate(2, map[string]any{"username": "x"})}

	if found := FindDuplicatesByIndices(raws, nil, f.owner); found != nil {
		t.Errorf("expected no duplicates without contracts, got %d", len(found))
	}
}

// TestFindDuplicatesByIndices_OwnerField verifies $ownerId resolves to the batch owner.
func TestFindDuplicatesByIndices_OwnerField(t *testing.T) {
	owner := identifier.Hash([]byte("alice"))

	c, err := contract.New(owner, map[string]map[string]any{
		"profile": {
			"type": "object",
			"indices": []any{
				map[string]any{"unique": true, "properties": []any{map[string]any{"$ownerId": "asc"}}},
			},
			"properties":           map[string]any{"username": map[string]any{"type": "string"}},
			"additionalProperties": false,
		},
	})
	if err != nil {
		t.Fatalf("contract.New failed: %v", err)
	}

	raw := func(seed byte) transition.Raw {
		return transition.Raw{
			transition.TagID:         identifier.Hash([]byte{seed}).Bytes(),
			transition.TagType:       "profile",
			transition.TagAction:     0,
			transition.TagContractID: c.ID().Bytes(),
		}
	}

	contracts := map[identifier.Identifier]*contract.Contract{c.ID(): c}

	found := FindDuplicatesByIndices([]transition.Raw{raw(1), raw(2)}, contracts, owner)
	if len(found) != 2 {
		t.Fatalf("expected one profile per owner to be enforced, got %d", len(found))
	}
}

// TestLookup verifies dotted path resolution.
func TestLookup(t *testing.T) {
	raw := transition.Raw{
		"a":   map[string]any{"b": map[string]any{"c": 1}},
		"a.x": "flat",
		"nil": nil,
	}

	if v, ok := lookup(raw, "a.b.c"); !ok || v != 1 {
		t.Errorf("a.b.c: got %v, %v", v, ok)
	}

	if v, ok := lookup(raw, "a.x"); !ok || v != "flat" {
		t.Errorf("a.x: got %v, %v", v, ok)
	}

	if _, ok := lookup(raw, "nil"); ok {
		t.Error("nil values must be treated as missing")
	}

	if _, ok := lookup(raw, "a.b.missing"); ok {
		t.Error("missing path resolved")
	}
}
