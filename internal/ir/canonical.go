package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tessera/internal/fault"
)

// MarshalCanonical produces RFC 8785 canonical JSON for content addressing.
// CRITICAL: This is the ONLY serialization that participates in Address
// computation. Same Value always yields the same bytes, regardless of map
// insertion order.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (the model has none)
//  5. No null (returns ENCODING_ERROR)
//
// Non-canonicalizable values (nil, Null, invalid UTF-8 strings) fail with
// an ENCODING_ERROR fault.
func MarshalCanonical(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fault.NewEncodingError("nil value is not canonicalizable")
	case Null:
		return nil, fault.NewEncodingError("null is forbidden in canonical encoding")
	case String:
		return marshalCanonicalString(string(val))
	case Int:
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Array:
		return marshalCanonicalArray(val)
	case Object:
		return marshalCanonicalObject(val)
	default:
		return nil, fault.NewEncodingError("unsupported value type %T", v)
	}
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization. RFC 8785 requirements:
//   - No HTML escaping (<, >, & stay literal)
//   - U+2028 and U+2029 stay literal
//   - Only control characters (U+0000-U+001F), backslash, and quote are
//     escaped
func marshalCanonicalString(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		// Encoding would silently replace invalid bytes with U+FFFD, mapping
		// distinct inputs to one address. Refuse instead.
		return nil, fault.NewEncodingError("string is not valid UTF-8")
	}

	// NFC normalize at the serialization boundary.
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fault.NewEncodingError("encode string: %v", err)
	}

	// json.Encoder adds a trailing newline, remove it.
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's encoder escapes U+2028/U+2029 for JavaScript embedding even with
	// HTML escaping off, which violates RFC 8785. Undo it.
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators rewrites   and   escape sequences back to
// literal characters. Escape sequences are consumed atomically, so a literal
// backslash followed by the text "u2028" (encoded as \\u2028) is preserved.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		c := data[i]
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		if i+5 < len(data) && data[i+1] == 'u' && data[i+2] == '2' &&
			data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, " "...)
			} else {
				out = append(out, " "...)
			}
			i += 6
			continue
		}
		// Any other escape: copy the backslash and the escaped byte so the
		// following byte can never start a false \u202x match.
		out = append(out, c)
		if i+1 < len(data) {
			out = append(out, data[i+1])
		}
		i += 2
	}
	return out
}

func marshalCanonicalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj Object) ([]byte, error) {
	// Keys are ordered by their NFC-normalized form, since that is what the
	// output contains. Distinct keys that collapse to one normalized string
	// would emit a duplicate key, so they are rejected.
	keys := make([]string, 0, len(obj))
	raw := make(map[string]string, len(obj))
	for k := range obj {
		if !utf8.ValidString(k) {
			return nil, fmt.Errorf("key %q: %w", k, fault.NewEncodingError("string is not valid UTF-8"))
		}
		nk := norm.NFC.String(k)
		if prev, dup := raw[nk]; dup {
			return nil, fault.NewEncodingError("keys %q and %q collide after NFC normalization", prev, k)
		}
		raw[nk] = k
		keys = append(keys, nk)
	}

	// RFC 8785 UTF-16 code unit ordering.
	slices.SortFunc(keys, compareKeysUTF16)

	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, nk := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(nk)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", nk, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalCanonical(obj[raw[nk]])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", raw[nk], err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
