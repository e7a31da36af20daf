package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/tessera/internal/fault"
)

// Decode parses canonical bytes back into a Value. It is the inverse of
// MarshalCanonical for values that canonicalize, and is used when restoring
// journaled objects. Strict: floats and null are rejected — canonical bytes
// never contain either, so seeing one means the input is not canonical.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fault.NewEncodingError("decode canonical bytes: %v", err)
	}
	if dec.More() {
		return nil, fault.NewEncodingError("trailing data after canonical value")
	}

	return fromDecoded(raw)
}

// fromDecoded converts the output of a UseNumber json decode into a Value.
// Unlike FromGo it refuses null.
func fromDecoded(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fault.NewEncodingError("null is forbidden in canonical encoding")
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fault.NewEncodingError("number %s is not an int64", val)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fault.NewEncodingError("unsupported type in canonical bytes: %T", v)
	}
}
