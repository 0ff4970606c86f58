package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Layr-Labs/ledgertx-go/pkg/types"
)

// normalizeValue converts a caller supplied value into the canonical Go representation of
// its field type: []byte for keys and hashes, string, bool, uint64 or int64.
func normalizeValue(field types.FieldSpec, value any) (any, error) {
	switch field.Type {
	case types.FieldTypePublicKey:
		return toFixedBytes(field, value, types.PublicKeySize)
	case types.FieldTypeSecp256k1PublicKey:
		return toFixedBytes(field, value, types.Secp256k1PublicKeySize)
	case types.FieldTypeHash:
		return toFixedBytes(field, value, types.HashSize)
	case types.FieldTypeString:
		s, ok := value.(string)
		if !ok {
			return nil, mismatch(field, "expected string, got %T", value)
		}
		if !utf8.ValidString(s) {
			return nil, mismatch(field, "string is not valid UTF-8")
		}
		return s, nil
	case types.FieldTypeBool:
		b, ok := value.(bool)
		if !ok {
			return nil, mismatch(field, "expected bool, got %T", value)
		}
		return b, nil
	case types.FieldTypeUInt8, types.FieldTypeUInt16, types.FieldTypeUInt32, types.FieldTypeUInt64:
		return toUint(field, value, bitSize(field.Type))
	case types.FieldTypeInt8, types.FieldTypeInt16, types.FieldTypeInt32, types.FieldTypeInt64:
		return toInt(field, value, bitSize(field.Type))
	default:
		return nil, fmt.Errorf("%w: field %q has type %q", types.ErrUnsupportedFieldType, field.Name, field.Type)
	}
}

func mismatch(field types.FieldSpec, format string, args ...any) error {
	return fmt.Errorf("%w: field %q (%s): %s", types.ErrSchemaMismatch, field.Name, field.Type, fmt.Sprintf(format, args...))
}

func bitSize(t types.FieldType) int {
	switch t {
	case types.FieldTypeUInt8, types.FieldTypeInt8:
		return 8
	case types.FieldTypeUInt16, types.FieldTypeInt16:
		return 16
	case types.FieldTypeUInt32, types.FieldTypeInt32:
		return 32
	default:
		return 64
	}
}

func toFixedBytes(field types.FieldSpec, value any, size int) ([]byte, error) {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case [32]byte:
		b = v[:]
	case [33]byte:
		b = v[:]
	case types.Hash:
		b = v
	case string:
		s := strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
		decoded, err := hex.DecodeString(s)
		if err != nil {
			return nil, mismatch(field, "invalid hex: %v", err)
		}
		b = decoded
	default:
		return nil, mismatch(field, "expected bytes or hex string, got %T", value)
	}
	if len(b) != size {
		return nil, mismatch(field, "expected %d bytes, got %d", size, len(b))
	}
	return append([]byte(nil), b...), nil
}

func toUint(field types.FieldSpec, value any, bits int) (uint64, error) {
	var u uint64
	switch v := value.(type) {
	case uint:
		u = uint64(v)
	case uint8:
		u = uint64(v)
	case uint16:
		u = uint64(v)
	case uint32:
		u = uint64(v)
	case uint64:
		u = v
	case int, int8, int16, int32, int64:
		i := signedOf(v)
		if i < 0 {
			return 0, mismatch(field, "negative value %d", i)
		}
		u = uint64(i)
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return 0, mismatch(field, "value %v is not an unsigned integer", v)
		}
		u = uint64(v)
	case json.Number:
		parsed, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return 0, mismatch(field, "invalid number %q", v.String())
		}
		u = parsed
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, mismatch(field, "invalid decimal %q", v)
		}
		u = parsed
	default:
		return 0, mismatch(field, "expected unsigned integer, got %T", value)
	}
	if bits < 64 && u > (uint64(1)<<bits)-1 {
		return 0, mismatch(field, "value %d overflows %d bits", u, bits)
	}
	return u, nil
}

func toInt(field types.FieldSpec, value any, bits int) (int64, error) {
	var i int64
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		i = signedOf(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, mismatch(field, "value %d overflows int64", v)
		}
		i = int64(v)
	case uint8:
		i = int64(v)
	case uint16:
		i = int64(v)
	case uint32:
		i = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, mismatch(field, "value %d overflows int64", v)
		}
		i = int64(v)
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, mismatch(field, "value %v is not an integer", v)
		}
		i = int64(v)
	case json.Number:
		parsed, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return 0, mismatch(field, "invalid number %q", v.String())
		}
		i = parsed
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, mismatch(field, "invalid decimal %q", v)
		}
		i = parsed
	default:
		return 0, mismatch(field, "expected integer, got %T", value)
	}
	if bits < 64 {
		limit := int64(1) << (bits - 1)
		if i < -limit || i > limit-1 {
			return 0, mismatch(field, "value %d overflows %d bits", i, bits)
		}
	}
	return i, nil
}

func signedOf(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	return 0
}
