package types

import (
	"encoding/hex"
	"fmt"
)

// FieldType identifies how a single transaction field is encoded
type FieldType string

const (
	FieldTypePublicKey          FieldType = "public_key"           // 32 bytes, Ed25519
	FieldTypeSecp256k1PublicKey FieldType = "secp256k1_public_key" // 33 bytes, compressed
	FieldTypeHash               FieldType = "hash"                 // 32 bytes
	FieldTypeString             FieldType = "string"
	FieldTypeBool               FieldType = "bool"
	FieldTypeUInt8              FieldType = "u8"
	FieldTypeUInt16             FieldType = "u16"
	FieldTypeUInt32             FieldType = "u32"
	FieldTypeUInt64             FieldType = "u64"
	FieldTypeInt8               FieldType = "i8"
	FieldTypeInt16              FieldType = "i16"
	FieldTypeInt32              FieldType = "i32"
	FieldTypeInt64              FieldType = "i64"
)

const (
	PublicKeySize          = 32
	Secp256k1PublicKeySize = 33
	HashSize               = 32
)

func (f FieldType) String() string {
	return string(f)
}

// IsPublicKey reports whether values of this type can be used to verify a signature
func (f FieldType) IsPublicKey() bool {
	return f == FieldTypePublicKey || f == FieldTypeSecp256k1PublicKey
}

// FieldSpec declares one named, typed field of a message
type FieldSpec struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
}

// MessageSchema identifies a transaction kind and the ordered layout of its fields.
// Schemas are treated as immutable once registered; use Clone before modifying one.
type MessageSchema struct {
	Name            string      `json:"name" yaml:"name"`
	ProtocolVersion uint8       `json:"protocol_version" yaml:"protocolVersion"`
	ServiceID       uint16      `json:"service_id" yaml:"serviceId"`
	MessageID       uint16      `json:"message_id" yaml:"messageId"`
	Fields          []FieldSpec `json:"fields" yaml:"fields"`

	// SignerField names the public key field that the signature is verified against.
	// When empty, the first public key typed field is used.
	SignerField string `json:"signer_field,omitempty" yaml:"signerField,omitempty"`
}

// Clone returns a deep copy of the schema
func (s *MessageSchema) Clone() *MessageSchema {
	if s == nil {
		return nil
	}
	out := *s
	out.Fields = append([]FieldSpec(nil), s.Fields...)
	return &out
}

// Field returns the FieldSpec of the named field
func (s *MessageSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// SignerFieldSpec resolves the field holding the public key the transaction is signed by
func (s *MessageSchema) SignerFieldSpec() (FieldSpec, error) {
	if s.SignerField != "" {
		f, ok := s.Field(s.SignerField)
		if !ok {
			return FieldSpec{}, fmt.Errorf("%w: signer field %q is not declared by schema %s", ErrSchemaMismatch, s.SignerField, s.Name)
		}
		if !f.Type.IsPublicKey() {
			return FieldSpec{}, fmt.Errorf("%w: signer field %q has non key type %s", ErrSchemaMismatch, f.Name, f.Type)
		}
		return f, nil
	}
	for _, f := range s.Fields {
		if f.Type.IsPublicKey() {
			return f, nil
		}
	}
	return FieldSpec{}, fmt.Errorf("%w: schema %s declares no public key field to verify against", ErrSchemaMismatch, s.Name)
}

// Payload maps field names to values. It must carry exactly the fields its schema declares.
type Payload map[string]any

// Clone returns a shallow copy of the payload; byte slices are copied
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		out[k] = v
	}
	return out
}

// Hash is a transaction content hash
type Hash []byte

func (h Hash) Hex() string {
	return hex.EncodeToString(h)
}

func (h Hash) String() string {
	return h.Hex()
}

// HashFromHex parses a hex encoded hash, accepting an optional 0x prefix
func HashFromHex(s string) (Hash, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("invalid hash: empty")
	}
	return b, nil
}

// SignedTransaction is a transaction whose signature has been verified against its declared
// public key. Instances are only produced by the transaction builder and must not be mutated.
type SignedTransaction struct {
	Schema         *MessageSchema
	Payload        Payload
	Signature      []byte
	ContentHash    Hash
	CanonicalBytes []byte
	HashAlgorithm  string
	SignatureAlgo  string
}

// SubmissionState is the lifecycle state of a submitted transaction
type SubmissionState string

const (
	SubmissionStatePending   SubmissionState = "pending"
	SubmissionStateConfirmed SubmissionState = "confirmed"
	SubmissionStateRejected  SubmissionState = "rejected"
	SubmissionStateTimedOut  SubmissionState = "timed_out"
	SubmissionStateFailed    SubmissionState = "failed"
)

// IsTerminal reports whether no further transitions can happen from this state
func (s SubmissionState) IsTerminal() bool {
	return s != SubmissionStatePending && s != ""
}

// SubmissionResult tracks a transaction after it has been handed to the ledger
type SubmissionResult struct {
	TxHash              Hash            `json:"tx_hash"`
	State               SubmissionState `json:"state"`
	Confirmed           bool            `json:"confirmed"`
	ConfirmationPayload []byte          `json:"confirmation_payload,omitempty"`
	Reason              string          `json:"reason,omitempty"`
}

// NewPendingResult creates the initial result for a freshly submitted transaction
func NewPendingResult(txHash Hash) *SubmissionResult {
	return &SubmissionResult{
		TxHash: append(Hash(nil), txHash...),
		State:  SubmissionStatePending,
	}
}
