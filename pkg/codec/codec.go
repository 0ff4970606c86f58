// Package codec produces the canonical byte encoding of typed ledger messages.
//
// A message is laid out as a 10 byte header followed by the body:
//
//	network_id u8 | protocol_version u8 | message_id u16 | service_id u16 | payload_length u32
//
// The body holds one fixed size slot per field in schema order. Strings occupy an 8 byte
// segment pointer (offset and length, both u32 and relative to the message start) and their
// UTF-8 bytes are appended after the fixed section. All integers are little endian.
// payload_length counts the header, the body and the trailing signature.
package codec

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

const (
	HeaderLength    = 10
	SignatureLength = 64
	NetworkID       = 0

	segmentLength = 8
)

// fieldSize returns the number of bytes a field occupies in the fixed section
func fieldSize(t types.FieldType) (int, error) {
	switch t {
	case types.FieldTypePublicKey:
		return types.PublicKeySize, nil
	case types.FieldTypeSecp256k1PublicKey:
		return types.Secp256k1PublicKeySize, nil
	case types.FieldTypeHash:
		return types.HashSize, nil
	case types.FieldTypeString:
		return segmentLength, nil
	case types.FieldTypeBool, types.FieldTypeUInt8, types.FieldTypeInt8:
		return 1, nil
	case types.FieldTypeUInt16, types.FieldTypeInt16:
		return 2, nil
	case types.FieldTypeUInt32, types.FieldTypeInt32:
		return 4, nil
	case types.FieldTypeUInt64, types.FieldTypeInt64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: %q", types.ErrUnsupportedFieldType, t)
	}
}

// Normalize checks that payload carries exactly the fields of schema and converts every
// value to its canonical Go representation. The returned payload is a fresh map.
func Normalize(schema *types.MessageSchema, payload types.Payload) (types.Payload, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is nil", types.ErrSchemaMismatch)
	}

	for _, f := range schema.Fields {
		if _, err := fieldSize(f.Type); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
	}

	var missing []string
	for _, f := range schema.Fields {
		if _, ok := payload[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: schema %s: missing fields %v", types.ErrSchemaMismatch, schema.Name, missing)
	}

	if len(payload) != len(schema.Fields) {
		var extra []string
		for name := range payload {
			if _, ok := schema.Field(name); !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: schema %s: unexpected fields %v", types.ErrSchemaMismatch, schema.Name, extra)
	}

	out := make(types.Payload, len(schema.Fields))
	for _, f := range schema.Fields {
		v, err := normalizeValue(f, payload[f.Name])
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

// Serialize returns the canonical bytes of payload under schema: the header and body, without
// the signature. Output only depends on the schema and the field values, never on map order.
func Serialize(schema *types.MessageSchema, payload types.Payload) ([]byte, error) {
	normalized, err := Normalize(schema, payload)
	if err != nil {
		return nil, err
	}

	fixedLen := 0
	for _, f := range schema.Fields {
		size, _ := fieldSize(f.Type)
		fixedLen += size
	}

	buf := make([]byte, HeaderLength+fixedLen)
	buf[0] = NetworkID
	buf[1] = schema.ProtocolVersion
	binary.LittleEndian.PutUint16(buf[2:4], schema.MessageID)
	binary.LittleEndian.PutUint16(buf[4:6], schema.ServiceID)

	pos := HeaderLength
	for _, f := range schema.Fields {
		size, _ := fieldSize(f.Type)
		slot := buf[pos : pos+size]
		switch v := normalized[f.Name].(type) {
		case []byte:
			copy(slot, v)
		case string:
			binary.LittleEndian.PutUint32(slot[0:4], uint32(len(buf)))
			binary.LittleEndian.PutUint32(slot[4:8], uint32(len(v)))
			buf = append(buf, v...)
		case bool:
			if v {
				slot[0] = 1
			}
		case uint64:
			putUint(slot, v)
		case int64:
			putUint(slot, uint64(v))
		default:
			return nil, fmt.Errorf("%w: field %q normalized to %T", types.ErrUnsupportedFieldType, f.Name, v)
		}
		pos += size
	}

	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(buf)+SignatureLength))
	return buf, nil
}

// Deserialize decodes canonical bytes produced by Serialize back into a normalized payload.
// A trailing signature, if present, is ignored.
func Deserialize(schema *types.MessageSchema, data []byte) (types.Payload, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is nil", types.ErrSchemaMismatch)
	}
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("%w: message shorter than header", types.ErrSchemaMismatch)
	}
	if data[1] != schema.ProtocolVersion ||
		binary.LittleEndian.Uint16(data[2:4]) != schema.MessageID ||
		binary.LittleEndian.Uint16(data[4:6]) != schema.ServiceID {
		return nil, fmt.Errorf("%w: header does not match schema %s", types.ErrSchemaMismatch, schema.Name)
	}

	total := int(binary.LittleEndian.Uint32(data[6:10])) - SignatureLength
	if total < HeaderLength || total > len(data) {
		return nil, fmt.Errorf("%w: invalid payload length %d", types.ErrSchemaMismatch, total)
	}
	data = data[:total]

	out := make(types.Payload, len(schema.Fields))
	pos := HeaderLength
	for _, f := range schema.Fields {
		size, err := fieldSize(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if pos+size > len(data) {
			return nil, fmt.Errorf("%w: field %q exceeds message length", types.ErrSchemaMismatch, f.Name)
		}
		slot := data[pos : pos+size]
		switch f.Type {
		case types.FieldTypePublicKey, types.FieldTypeSecp256k1PublicKey, types.FieldTypeHash:
			out[f.Name] = append([]byte(nil), slot...)
		case types.FieldTypeString:
			offset := int(binary.LittleEndian.Uint32(slot[0:4]))
			length := int(binary.LittleEndian.Uint32(slot[4:8]))
			if offset < HeaderLength || offset+length > len(data) {
				return nil, fmt.Errorf("%w: field %q segment out of bounds", types.ErrSchemaMismatch, f.Name)
			}
			out[f.Name] = string(data[offset : offset+length])
		case types.FieldTypeBool:
			if slot[0] > 1 {
				return nil, fmt.Errorf("%w: field %q invalid bool %d", types.ErrSchemaMismatch, f.Name, slot[0])
			}
			out[f.Name] = slot[0] == 1
		case types.FieldTypeUInt8, types.FieldTypeUInt16, types.FieldTypeUInt32, types.FieldTypeUInt64:
			out[f.Name] = getUint(slot)
		case types.FieldTypeInt8, types.FieldTypeInt16, types.FieldTypeInt32, types.FieldTypeInt64:
			out[f.Name] = signExtend(getUint(slot), size*8)
		}
		pos += size
	}
	return out, nil
}

func putUint(slot []byte, v uint64) {
	for i := range slot {
		slot[i] = byte(v >> (8 * i))
	}
}

func getUint(slot []byte) uint64 {
	var v uint64
	for i := range slot {
		v |= uint64(slot[i]) << (8 * i)
	}
	return v
}

func signExtend(v uint64, bits int) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}
