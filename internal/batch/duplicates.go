package batch

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"DocBatch/internal/contract"
	"DocBatch/internal/identifier"
	"DocBatch/internal/transition"
)

// ownerIDField is the index field resolved to the batch owner.
const ownerIDField = "$ownerId"

// grouper collects transitions under keys, keeping first-appearance order.
type grouper struct {
	order  []string         // order lists keys by first appearance
	groups map[string][]int // groups maps key to member positions
	raws   []transition.Raw // raws is the input sequence
}

// newGrouper creates a grouper over raws.
func newGrouper(raws []transition.Raw) *grouper {
	return &grouper{groups: make(map[string][]int), raws: raws}
}

// add records position i under key.
func (g *grouper) add(key string, i int) {
	if _, ok := g.groups[key]; !ok {
		g.order = append(g.order, key)
	}
	g.groups[key] = append(g.groups[key], i)
}

// duplicates returns every member of groups with more than one member.
// Each transition appears at most once.
func (g *grouper) duplicates() []transition.Raw {
	var out []transition.Raw
	reported := make(map[int]bool)

	for _, key := range g.order {
		members := g.groups[key]
		if len(members) < 2 {
			continue
		}

		for _, i := range members {
			if reported[i] {
				continue
			}
			reported[i] = true
			out = append(out, g.raws[i])
		}
	}

	return out
}

// FindDuplicatesByID returns the transitions sharing ($type, $id) with another one.
func FindDuplicatesByID(raws []transition.Raw) []transition.Raw {
	g := newGrouper(raws)

	for i, raw := range raws {
		docType, ok := raw.Type()
		if !ok {
			continue
		}

		id, ok := raw.Bytes(transition.TagID)
		if !ok {
			continue
		}

		g.add(docType+"|"+hex.EncodeToString(id), i)
	}

	return g.duplicates()
}

// FindDuplicatesByIndices returns the transitions whose values collide on a unique
// index of their document type. Delete transitions and transitions lacking any
// indexed value are ignored.
func FindDuplicatesByIndices(raws []transition.Raw, contracts map[identifier.Identifier]*contract.Contract, owner identifier.Identifier) []transition.Raw {
	g := newGrouper(raws)

	for i, raw := range raws {
		if action, ok := raw.Action(); !ok || action == transition.ActionDelete {
			continue
		}

		contractID, ok := raw.Identifier(transition.TagContractID)
		if !ok {
			continue
		}

		c := contracts[contractID]
		if c == nil {
			continue
		}

		docType, ok := raw.Type()
		if !ok {
			continue
		}

		for n, idx := range c.UniqueIndices(docType) {
			values, ok := indexValues(raw, idx, owner)
			if !ok {
				continue
			}

			key := strings.Join([]string{contractID.Hex(), docType, strconv.Itoa(n), idx.Name, values}, "|")
			g.add(key, i)
		}
	}

	return g.duplicates()
}

// indexValues encodes the tuple of indexed values of raw.
func indexValues(raw transition.Raw, idx contract.Index, owner identifier.Identifier) (string, bool) {
	values := make([]any, len(idx.Fields))

	for i, field := range idx.Fields {
		if field.Name == ownerIDField {
			values[i] = owner.Bytes()
			continue
		}

		v, ok := lookup(raw, field.Name)
		if !ok {
			return "", false
		}
		values[i] = v
	}

	data, err := json.Marshal(values)
	if err != nil {
		return "", false
	}

	return string(data), true
}

// lookup resolves a dotted field path in raw.
func lookup(raw transition.Raw, path string) (any, bool) {
	if v, ok := raw[path]; ok {
		return v, v != nil
	}

	var cur any = map[string]any(raw)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return cur, cur != nil
}
