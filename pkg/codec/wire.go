package codec

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// SignaturePlacement selects where the signature sits in the JSON wire format
type SignaturePlacement string

const (
	// SignatureInBody places the signature next to the payload fields inside "body"
	SignatureInBody SignaturePlacement = "body"
	// SignatureInEnvelope places the signature at the top level of the transaction object
	SignatureInEnvelope SignaturePlacement = "envelope"
)

// WireFormat describes the ledger specific JSON shape of a submitted transaction
type WireFormat struct {
	SignaturePlacement SignaturePlacement
}

// DefaultWireFormat is the shape expected by the simple_mining_pool service
var DefaultWireFormat = WireFormat{SignaturePlacement: SignatureInBody}

func (w WireFormat) placement() SignaturePlacement {
	if w.SignaturePlacement == "" {
		return SignatureInBody
	}
	return w.SignaturePlacement
}

// ISchemaLookup resolves the schema of an incoming transaction by its identifiers
type ISchemaLookup interface {
	Lookup(serviceID, messageID uint16) (*types.MessageSchema, bool)
}

// DecodedTransaction is a transaction read back from its JSON wire form
type DecodedTransaction struct {
	Schema    *types.MessageSchema
	Payload   types.Payload
	Signature []byte
}

type wireEnvelope struct {
	ProtocolVersion uint8           `json:"protocol_version"`
	ServiceID       uint16          `json:"service_id"`
	MessageID       uint16          `json:"message_id"`
	Body            json.RawMessage `json:"body"`
	Signature       string          `json:"signature,omitempty"`
}

// EncodeTransactionJSON renders a signed transaction in the ledger's JSON wire format.
// Body fields are emitted in schema order.
func EncodeTransactionJSON(tx *types.SignedTransaction, format WireFormat) ([]byte, error) {
	if tx == nil || tx.Schema == nil {
		return nil, fmt.Errorf("cannot encode nil transaction")
	}
	normalized, err := Normalize(tx.Schema, tx.Payload)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	body.WriteByte('{')
	for i, f := range tx.Schema.Fields {
		if i > 0 {
			body.WriteByte(',')
		}
		if err := writeMember(&body, f.Name, jsonValue(f, normalized[f.Name])); err != nil {
			return nil, err
		}
	}
	sigHex := hex.EncodeToString(tx.Signature)
	if format.placement() == SignatureInBody {
		if len(tx.Schema.Fields) > 0 {
			body.WriteByte(',')
		}
		if err := writeMember(&body, "signature", sigHex); err != nil {
			return nil, err
		}
	}
	body.WriteByte('}')

	env := wireEnvelope{
		ProtocolVersion: tx.Schema.ProtocolVersion,
		ServiceID:       tx.Schema.ServiceID,
		MessageID:       tx.Schema.MessageID,
		Body:            body.Bytes(),
	}
	if format.placement() == SignatureInEnvelope {
		env.Signature = sigHex
	}
	return json.Marshal(env)
}

// DecodeTransactionJSON parses a wire transaction, resolving its schema through lookup.
// The returned payload is normalized and checked against the schema.
func DecodeTransactionJSON(data []byte, lookup ISchemaLookup, format WireFormat) (*DecodedTransaction, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse transaction envelope: %w", err)
	}

	schema, ok := lookup.Lookup(env.ServiceID, env.MessageID)
	if !ok {
		return nil, fmt.Errorf("%w: no schema for service %d message %d", types.ErrSchemaMismatch, env.ServiceID, env.MessageID)
	}
	if schema.ProtocolVersion != env.ProtocolVersion {
		return nil, fmt.Errorf("%w: protocol version %d, schema %s expects %d",
			types.ErrSchemaMismatch, env.ProtocolVersion, schema.Name, schema.ProtocolVersion)
	}

	dec := json.NewDecoder(bytes.NewReader(env.Body))
	dec.UseNumber()
	raw := map[string]any{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse transaction body: %w", err)
	}

	sigHex := env.Signature
	if format.placement() == SignatureInBody {
		s, ok := raw["signature"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: body carries no signature", types.ErrSchemaMismatch)
		}
		sigHex = s
		delete(raw, "signature")
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid signature hex: %v", types.ErrSchemaMismatch, err)
	}

	payload, err := Normalize(schema, types.Payload(raw))
	if err != nil {
		return nil, err
	}

	return &DecodedTransaction{
		Schema:    schema,
		Payload:   payload,
		Signature: sig,
	}, nil
}

// jsonValue maps a normalized field value to its JSON representation. 64 bit integers are
// encoded as decimal strings since JSON numbers cannot carry them losslessly.
func jsonValue(f types.FieldSpec, v any) any {
	switch t := v.(type) {
	case []byte:
		return hex.EncodeToString(t)
	case uint64:
		if f.Type == types.FieldTypeUInt64 {
			return strconv.FormatUint(t, 10)
		}
		return t
	case int64:
		if f.Type == types.FieldTypeInt64 {
			return strconv.FormatInt(t, 10)
		}
		return t
	default:
		return v
	}
}

func writeMember(buf *bytes.Buffer, name string, value any) error {
	k, err := json.Marshal(name)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode field %q: %w", name, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
