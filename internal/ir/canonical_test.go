package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/fault"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"zero", Int(0), "0"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"min int64", Int(-9223372036854775808), "-9223372036854775808"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", Object{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Int(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNestedSortedKeys(t *testing.T) {
	obj := Object{
		"z": Object{
			"b": Int(1),
			"a": Int(2),
		},
		"a": Int(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000 - UTF-16 order differs from UTF-8.
	// This is THE critical case for RFC 8785 compliance.
	obj := Object{
		"": Int(1), // UTF-16: 0xE000
		"𐀀":      Int(2), // UTF-16: 0xD800, 0xDC00 (surrogate pair)
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)

	// UTF-16 order: 0xD800 < 0xE000, so 𐀀 comes first.
	expected := `{"𐀀":2,"` + "" + `":1}`
	assert.Equal(t, expected, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<script>alert('a & b')</script>"))
	require.NoError(t, err)
	assert.Equal(t, `"<script>alert('a & b')</script>"`, string(result))
	assert.NotContains(t, string(result), `\u003c`)
	assert.NotContains(t, string(result), `\u003e`)
	assert.NotContains(t, string(result), `\u0026`)
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// Decomposed e + combining acute must encode identically to precomposed é.
	composed := String("café")
	decomposed := String("café")

	c1, err := MarshalCanonical(composed)
	require.NoError(t, err)
	c2, err := MarshalCanonical(decomposed)
	require.NoError(t, err)

	assert.Equal(t, string(c1), string(c2))
	assert.Equal(t, `"caf`+"é"+`"`, string(c1))
}

func TestMarshalCanonicalLineSeparatorsUnescaped(t *testing.T) {
	// U+2028 and U+2029 must appear literally per RFC 8785, even though
	// Go's encoder escapes them.
	result, err := MarshalCanonical(String("a b c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(result))

	// A literal backslash followed by the text "u2028" is NOT the line
	// separator and must stay escaped.
	result, err = MarshalCanonical(String(`a\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028"`, string(result))
}

func TestMarshalCanonicalControlCharacterEscapes(t *testing.T) {
	result, err := MarshalCanonical(String("a\"b\\c\nd\te"))
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\\c\nd\te"`, string(result))
}

func TestMarshalCanonicalRejectsNull(t *testing.T) {
	_, err := MarshalCanonical(Null{})
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))

	// Nested null is reported with its path.
	_, err = MarshalCanonical(Object{"k": Null{}})
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
	assert.Contains(t, err.Error(), `"k"`)
}

func TestMarshalCanonicalRejectsNilElement(t *testing.T) {
	_, err := MarshalCanonical(Array{Int(1), nil})
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
	assert.Contains(t, err.Error(), "array[1]")
}

func TestMarshalCanonicalRejectsInvalidUTF8(t *testing.T) {
	_, err := MarshalCanonical(String([]byte{0xff, 0xfe}))
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))

	_, err = MarshalCanonical(Object{string([]byte{0xff}): Int(1)})
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
}

func TestMarshalCanonicalRejectsNFCKeyCollision(t *testing.T) {
	obj := Object{
		"café":  Int(1),
		"café": Int(2),
	}

	_, err := MarshalCanonical(obj)
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
	assert.Contains(t, err.Error(), "collide")
}

func TestMarshalCanonicalDeterministicAcrossInsertionOrder(t *testing.T) {
	a := Object{"x": Int(1), "y": Int(2), "z": Int(3)}
	b := Object{"z": Int(3), "y": Int(2), "x": Int(1)}

	ca, err := MarshalCanonical(a)
	require.NoError(t, err)
	cb, err := MarshalCanonical(b)
	require.NoError(t, err)

	assert.Equal(t, string(ca), string(cb))
}
