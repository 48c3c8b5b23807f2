package validation

import (
	"encoding/hex"
	"fmt"
)

// Kind is a stable category of validation error.
// Callers branch on Kind (or Code) rather than on messages.
type Kind string

const (
	KindMissingDocumentType       Kind = "MissingDocumentType"
	KindUnknownDocumentType       Kind = "UnknownDocumentType"
	KindMissingAction             Kind = "MissingAction"
	KindInvalidAction             Kind = "InvalidAction"
	KindInvalidDocumentIdentifier Kind = "InvalidDocumentIdentifier"
	KindDuplicateTransitions      Kind = "DuplicateTransitions"
	KindMissingContractID         Kind = "MissingContractId"
	KindInvalidContractID         Kind = "InvalidContractId"
	KindContractNotFound          Kind = "ContractNotFound"
	KindJSONSchema                Kind = "JsonSchema"
	KindUnknownMetaSchema         Kind = "UnknownMetaSchema"
	KindIdentityNotFound          Kind = "IdentityNotFound"
	KindMissingPublicKey          Kind = "MissingPublicKey"
	KindPublicKeyDisabled         Kind = "PublicKeyDisabled"
	KindInvalidSignature          Kind = "InvalidSignature"
)

// Stable numeric codes, grouped by range:
// 1xxx structure, 2xxx schema, 3xxx contract, 4xxx identity and signature.
const (
	CodeMissingDocumentType       = 1001
	CodeUnknownDocumentType       = 1002
	CodeMissingAction             = 1003
	CodeInvalidAction             = 1004
	CodeInvalidDocumentIdentifier = 1005
	CodeDuplicateTransitions      = 1006
	CodeMissingContractID         = 1007
	CodeInvalidContractID         = 1008
	CodeJSONSchema                = 2001
	CodeUnknownMetaSchema         = 2002
	CodeContractNotFound          = 3001
	CodeIdentityNotFound          = 4001
	CodeMissingPublicKey          = 4002
	CodePublicKeyDisabled         = 4003
	CodeInvalidSignature          = 4004
)

// Detector names the duplicate detector that produced a DuplicateTransitionsError.
type Detector string

const (
	DetectorByID      Detector = "id"
	DetectorByIndices Detector = "indices"
)

// Error is a single validation failure.
type Error interface {
	error
	Kind() Kind
	Code() int
}

// MissingDocumentTypeError reports a transition without a $type tag.
type MissingDocumentTypeError struct {
	Transition map[string]any // Transition is the offending raw record
}

func (e *MissingDocumentTypeError) Error() string { return "$type is not present" }
func (e *MissingDocumentTypeError) Kind() Kind    { return KindMissingDocumentType }
func (e *MissingDocumentTypeError) Code() int     { return CodeMissingDocumentType }

// UnknownDocumentTypeError reports a $type the contract does not define.
type UnknownDocumentTypeError struct {
	Type       any    // Type is the declared type value
	ContractID []byte // ContractID is the contract the type was looked up in
}

func (e *UnknownDocumentTypeError) Error() string {
	return fmt.Sprintf("contract %s does not define document type %v", shortHex(e.ContractID), e.Type)
}
func (e *UnknownDocumentTypeError) Kind() Kind { return KindUnknownDocumentType }
func (e *UnknownDocumentTypeError) Code() int  { return CodeUnknownDocumentType }

// MissingActionError reports a transition without an $action tag.
type MissingActionError struct {
	Transition map[string]any
}

func (e *MissingActionError) Error() string { return "$action is not present" }
func (e *MissingActionError) Kind() Kind    { return KindMissingAction }
func (e *MissingActionError) Code() int     { return CodeMissingAction }

// InvalidActionError reports an $action tag outside the known actions.
type InvalidActionError struct {
	Action     any
	Transition map[string]any
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid document transition action %v", e.Action)
}
func (e *InvalidActionError) Kind() Kind { return KindInvalidAction }
func (e *InvalidActionError) Code() int  { return CodeInvalidAction }

// InvalidDocumentIDError reports a create transition whose $id does not match
// the identifier derived from its contract, owner, type and entropy.
type InvalidDocumentIDError struct {
	Expected   []byte // Expected is the derived identifier
	Transition map[string]any
}

func (e *InvalidDocumentIDError) Error() string {
	return fmt.Sprintf("invalid document transition id, expected %s", shortHex(e.Expected))
}
func (e *InvalidDocumentIDError) Kind() Kind { return KindInvalidDocumentIdentifier }
func (e *InvalidDocumentIDError) Code() int  { return CodeInvalidDocumentIdentifier }

// DuplicateTransitionsError reports batch-internal conflicts.
type DuplicateTransitionsError struct {
	Detector    Detector         // Detector is the detector that found the conflict
	Transitions []map[string]any // Transitions holds every member of the conflicting groups
}

func (e *DuplicateTransitionsError) Error() string {
	return fmt.Sprintf("%d duplicate document transitions found by %s", len(e.Transitions), e.Detector)
}
func (e *DuplicateTransitionsError) Kind() Kind { return KindDuplicateTransitions }
func (e *DuplicateTransitionsError) Code() int  { return CodeDuplicateTransitions }

// MissingContractIDError reports a transition without $dataContractId.
type MissingContractIDError struct {
	Transition map[string]any
}

func (e *MissingContractIDError) Error() string { return "$dataContractId is not present" }
func (e *MissingContractIDError) Kind() Kind    { return KindMissingContractID }
func (e *MissingContractIDError) Code() int     { return CodeMissingContractID }

// InvalidContractIDError reports a $dataContractId that is not a 32-byte value.
type InvalidContractIDError struct {
	Value any
}

func (e *InvalidContractIDError) Error() string {
	return fmt.Sprintf("invalid $dataContractId of type %T", e.Value)
}
func (e *InvalidContractIDError) Kind() Kind { return KindInvalidContractID }
func (e *InvalidContractIDError) Code() int  { return CodeInvalidContractID }

// ContractNotFoundError reports a reference to an unregistered contract.
type ContractNotFoundError struct {
	ContractID []byte
}

func (e *ContractNotFoundError) Error() string {
	return fmt.Sprintf("data contract %s is not present", shortHex(e.ContractID))
}
func (e *ContractNotFoundError) Kind() Kind { return KindContractNotFound }
func (e *ContractNotFoundError) Code() int  { return CodeContractNotFound }

// SchemaError is one failed JSON-Schema keyword.
type SchemaError struct {
	Keyword      string // Keyword is the failing schema keyword (e.g. "required")
	InstancePath string // InstancePath is the JSON pointer into the document
	SchemaPath   string // SchemaPath is the JSON pointer into the schema
	Message      string
}

func (e *SchemaError) Error() string {
	if e.InstancePath == "" {
		return e.Message
	}
	return e.InstancePath + ": " + e.Message
}
func (e *SchemaError) Kind() Kind { return KindJSONSchema }
func (e *SchemaError) Code() int  { return CodeJSONSchema }

// UnknownMetaSchemaError reports a contract declaring a meta-schema the engine does not know.
type UnknownMetaSchemaError struct {
	MetaSchema string
}

func (e *UnknownMetaSchemaError) Error() string {
	return fmt.Sprintf("unknown meta-schema %q", e.MetaSchema)
}
func (e *UnknownMetaSchemaError) Kind() Kind { return KindUnknownMetaSchema }
func (e *UnknownMetaSchemaError) Code() int  { return CodeUnknownMetaSchema }

// IdentityNotFoundError reports a submitter identity that does not exist.
type IdentityNotFoundError struct {
	IdentityID []byte
}

func (e *IdentityNotFoundError) Error() string {
	return fmt.Sprintf("identity %s not found", shortHex(e.IdentityID))
}
func (e *IdentityNotFoundError) Kind() Kind { return KindIdentityNotFound }
func (e *IdentityNotFoundError) Code() int  { return CodeIdentityNotFound }

// MissingPublicKeyError reports a signature key id the signer does not hold.
type MissingPublicKeyError struct {
	PublicKeyID uint32
}

func (e *MissingPublicKeyError) Error() string {
	return fmt.Sprintf("public key %d not found", e.PublicKeyID)
}
func (e *MissingPublicKeyError) Kind() Kind { return KindMissingPublicKey }
func (e *MissingPublicKeyError) Code() int  { return CodeMissingPublicKey }

// PublicKeyDisabledError reports a signature made with a disabled key.
type PublicKeyDisabledError struct {
	PublicKeyID uint32
}

func (e *PublicKeyDisabledError) Error() string {
	return fmt.Sprintf("public key %d is disabled", e.PublicKeyID)
}
func (e *PublicKeyDisabledError) Kind() Kind { return KindPublicKeyDisabled }
func (e *PublicKeyDisabledError) Code() int  { return CodePublicKeyDisabled }

// InvalidSignatureError reports a signature that does not verify.
type InvalidSignatureError struct {
	PublicKeyID uint32
	Reason      string
}

func (e *InvalidSignatureError) Error() string {
	if e.Reason == "" {
		return "invalid signature"
	}
	return "invalid signature: " + e.Reason
}
func (e *InvalidSignatureError) Kind() Kind { return KindInvalidSignature }
func (e *InvalidSignatureError) Code() int  { return CodeInvalidSignature }

// shortHex formats the first bytes of b for messages.
func shortHex(b []byte) string {
	if len(b) > 8 {
		b = b[:8]
	}
	return hex.EncodeToString(b)
}
