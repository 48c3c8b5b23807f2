// Package transition models document transitions: the raw attribute-tagged record
// received on the wire and its typed Create, Replace and Delete variants.
package transition

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/goccy/go-json"

	"DocBatch/internal/identifier"
)

// Wire tags of a document transition.
const (
	TagID         = "$id"
	TagType       = "$type"
	TagAction     = "$action"
	TagContractID = "$dataContractId"
	TagEntropy    = "$entropy"
	TagRevision   = "$revision"
	TagCreatedAt  = "$createdAt"
	TagUpdatedAt  = "$updatedAt"
)

// binaryTags are the tags carrying bytes; base64 on the JSON wire.
var binaryTags = []string{TagID, TagContractID, TagEntropy}

// Action is the operation a transition performs.
type Action int

const (
	ActionCreate  Action = 0
	ActionReplace Action = 1
	ActionDelete  Action = 3
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionReplace:
		return "replace"
	case ActionDelete:
		return "delete"
	default:
		return "action(" + strconv.Itoa(int(a)) + ")"
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionCreate || a == ActionReplace || a == ActionDelete
}

// ParseAction converts a decoded $action value to an Action.
// ok is false when v is not an integer; the action itself may still be unknown.
func ParseAction(v any) (Action, bool) {
	switch n := v.(type) {
	case Action:
		return n, true
	case json.Number:
		i, err := IntValue(n)
		if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
			return 0, false
		}
		return Action(i), true
	case int:
		return Action(n), true
	case int32:
		return Action(n), true
	case int64:
		return Action(n), true
	case uint8:
		return Action(n), true
	case uint32:
		return Action(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return Action(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return Action(n), true
	default:
		return 0, false
	}
}

// Raw is an untyped transition record as received on the wire.
type Raw map[string]any

// HasType reports whether the $type tag is present.
func (r Raw) HasType() bool {
	_, ok := r[TagType]
	return ok
}

// Type returns the $type tag when it is a string.
func (r Raw) Type() (string, bool) {
	t, ok := r[TagType].(string)
	return t, ok
}

// HasAction reports whether the $action tag is present.
func (r Raw) HasAction() bool {
	_, ok := r[TagAction]
	return ok
}

// ActionValue returns the raw $action value.
func (r Raw) ActionValue() any {
	return r[TagAction]
}

// Action returns the parsed $action tag.
func (r Raw) Action() (Action, bool) {
	v, ok := r[TagAction]
	if !ok {
		return 0, false
	}
	return ParseAction(v)
}

// HasContractID reports whether the $dataContractId tag is present, even when null.
func (r Raw) HasContractID() bool {
	_, ok := r[TagContractID]
	return ok
}

// Bytes returns a binary tag.
func (r Raw) Bytes(tag string) ([]byte, bool) {
	return BytesValue(r[tag])
}

// Identifier returns a binary tag as an identifier.
func (r Raw) Identifier(tag string) (identifier.Identifier, bool) {
	b, ok := r.Bytes(tag)
	if !ok {
		return identifier.Identifier{}, false
	}

	id, err := identifier.FromBytes(b)
	if err != nil {
		return identifier.Identifier{}, false
	}

	return id, true
}

// Clone returns a shallow copy of r.
func (r Raw) Clone() Raw {
	out := make(Raw, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Plain returns r as a plain map, the form error payloads and schemas consume.
func (r Raw) Plain() map[string]any {
	return map[string]any(r.Clone())
}

// DecodeBinary converts base64 strings in the binary tags to bytes, in place.
// Values that are not valid base64 are left untouched so validation reports them.
func DecodeBinary(r Raw) Raw {
	for _, tag := range binaryTags {
		s, ok := r[tag].(string)
		if !ok {
			continue
		}

		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			continue
		}

		r[tag] = b
	}

	return r
}

// EncodeBinary converts bytes in the binary tags to base64 strings, in place.
func EncodeBinary(r Raw) Raw {
	for _, tag := range binaryTags {
		if b, ok := r[tag].([]byte); ok {
			r[tag] = base64.StdEncoding.EncodeToString(b)
		}
	}
	return r
}

// BytesValue reads a binary value: a byte string or an array of integers in 0..255.
func BytesValue(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case []any:
		out := make([]byte, len(b))
		for i, x := range b {
			n, err := IntValue(x)
			if err != nil || n < 0 || n > math.MaxUint8 {
				return nil, false
			}
			out[i] = byte(n)
		}
		return out, true
	default:
		return nil, false
	}
}

// IntValue reads an integer from a decoded number. Integral literals in any JSON
// spelling ("2", "2.0", "1e1") are accepted.
func IntValue(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		r, ok := new(big.Rat).SetString(n.String())
		if !ok || !r.IsInt() {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		if !r.Num().IsInt64() {
			return 0, fmt.Errorf("out of range: %s", n)
		}
		return r.Num().Int64(), nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("out of range: %d", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) >= 1<<63 {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
