package validation

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// TestResult_EmptyIsValid verifies a fresh result is valid.
func TestResult_EmptyIsValid(t *testing.T) {
	r := NewResult()

	if !r.IsValid() {
		t.Error("empty result should be valid")
	}

	if r.FirstError() != nil {
		t.Error("empty result should have no first error")
	}
}

// TestResult_AddErrorSkipsNil verifies nil errors are ignored.
func TestResult_AddErrorSkipsNil(t *testing.T) {
	r := NewResult(nil)
	r.AddError(nil, &MissingActionError{})

	if len(r.Errors()) != 1 {
		t.Fatalf("expected 1 error, got %d", len(r.Errors()))
	}
}

// TestResult_Merge verifies merge preserves order across results.
func TestResult_Merge(t *testing.T) {
	a := NewResult(&MissingDocumentTypeError{})
	b := NewResult(&MissingActionError{}, &ContractNotFoundError{ContractID: []byte{1, 2}})

	a.Merge(b)
	a.Merge(nil)

	kinds := a.Kinds()
	want := []Kind{KindMissingDocumentType, KindMissingAction, KindContractNotFound}

	if len(kinds) != len(want) {
		t.Fatalf("expected %d kinds, got %d", len(want), len(kinds))
	}

	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kind %d: got %s, want %s", i, kinds[i], want[i])
		}
	}

	if !a.Has(KindContractNotFound) {
		t.Error("expected Has(ContractNotFound)")
	}

	if a.Has(KindInvalidSignature) {
		t.Error("unexpected Has(InvalidSignature)")
	}
}

// TestResult_ErrorsIsCopy verifies callers cannot mutate the result through Errors.
func TestResult_ErrorsIsCopy(t *testing.T) {
	r := NewResult(&MissingActionError{})

	errs := r.Errors()
	errs[0] = &MissingDocumentTypeError{}

	if r.FirstError().Kind() != KindMissingAction {
		t.Error("result mutated through Errors()")
	}
}

// TestResult_MarshalJSON verifies the wire form.
func TestResult_MarshalJSON(t *testing.T) {
	r := NewResult(&InvalidActionError{Action: 9})

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		Valid  bool `json:"valid"`
		Errors []struct {
			Kind    string `json:"kind"`
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}

	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.Valid {
		t.Error("expected valid=false")
	}

	if len(decoded.Errors) != 1 || decoded.Errors[0].Code != CodeInvalidAction {
		t.Fatalf("unexpected errors: %+v", decoded.Errors)
	}

	if !strings.Contains(decoded.Errors[0].Message, "9") {
		t.Errorf("message should mention the action: %q", decoded.Errors[0].Message)
	}
}

// TestResult_String verifies the summary is bounded.
func TestResult_String(t *testing.T) {
	if NewResult().String() != "valid" {
		t.Error("expected 'valid' for empty result")
	}

	r := NewResult(
		&MissingActionError{},
		&MissingActionError{},
		&MissingActionError{},
		&MissingActionError{},
	)

	if !strings.HasSuffix(r.String(), "; ...") {
		t.Errorf("expected truncated summary, got %q", r.String())
	}
}
