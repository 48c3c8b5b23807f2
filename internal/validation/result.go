package validation

import (
	"strings"

	"github.com/goccy/go-json"
)

// Result accumulates validation errors.
// A Result with no errors is valid. Results are not safe for concurrent use.
type Result struct {
	errs []Error // errs holds the collected errors in insertion order
}

// NewResult creates a result holding the given errors.
func NewResult(errs ...Error) *Result {
	r := &Result{}
	r.AddError(errs...)

	return r
}

// AddError appends errors to the result.
func (r *Result) AddError(errs ...Error) {
	for _, e := range errs {
		if e != nil {
			r.errs = append(r.errs, e)
		}
	}
}

// Merge appends every error of other. A nil other is ignored.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}

	r.errs = append(r.errs, other.errs...)
}

// IsValid reports whether no errors were collected.
func (r *Result) IsValid() bool {
	return len(r.errs) == 0
}

// Errors returns a copy of the collected errors.
func (r *Result) Errors() []Error {
	out := make([]Error, len(r.errs))
	copy(out, r.errs)
	return out
}

// FirstError returns the first collected error, or nil.
func (r *Result) FirstError() Error {
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[0]
}

// Kinds returns the kind of every collected error, in order.
func (r *Result) Kinds() []Kind {
	kinds := make([]Kind, len(r.errs))
	for i, e := range r.errs {
		kinds[i] = e.Kind()
	}
	return kinds
}

// Has reports whether at least one error of the given kind was collected.
func (r *Result) Has(kind Kind) bool {
	for _, e := range r.errs {
		if e.Kind() == kind {
			return true
		}
	}
	return false
}

// String summarizes the first few errors.
func (r *Result) String() string {
	if r.IsValid() {
		return "valid"
	}

	const maxShown = 3

	b := &strings.Builder{}
	for i, e := range r.errs {
		if i == maxShown {
			b.WriteString("; ...")
			break
		}
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(string(e.Kind()))
		b.WriteString(": ")
		b.WriteString(e.Error())
	}

	return b.String()
}

// entry is the JSON form of one error.
type entry struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MarshalJSON renders the result as {"valid": bool, "errors": [...]}.
func (r *Result) MarshalJSON() ([]byte, error) {
	entries := make([]entry, len(r.errs))
	for i, e := range r.errs {
		entries[i] = entry{Kind: e.Kind(), Code: e.Code(), Message: e.Error()}
	}

	return json.Marshal(struct {
		Valid  bool    `json:"valid"`
		Errors []entry `json:"errors"`
	}{
		Valid:  r.IsValid(),
		Errors: entries,
	})
}
