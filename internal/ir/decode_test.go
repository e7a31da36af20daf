package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/fault"
)

func TestDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{"string", String("hello")},
		{"int", Int(-42)},
		{"bool", Bool(true)},
		{"empty object", Object{}},
		{"empty array", Array{}},
		{"nested", Object{
			"items": Array{Int(1), String("two"), Bool(false)},
			"meta":  Object{"count": Int(3)},
		}},
		{"unicode", String("café 🎲")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, err := MarshalCanonical(tt.value)
			require.NoError(t, err)

			decoded, err := Decode(canonical)
			require.NoError(t, err)
			assert.Equal(t, tt.value, decoded)
		})
	}
}

func TestDecodeRoundTripPreservesAddress(t *testing.T) {
	v := Object{"k": Array{Int(1), Int(2)}}
	canonical, err := MarshalCanonical(v)
	require.NoError(t, err)

	decoded, err := Decode(canonical)
	require.NoError(t, err)

	reencoded, err := MarshalCanonical(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(canonical), string(reencoded))
}

func TestDecodeRejectsFloat(t *testing.T) {
	_, err := Decode([]byte(`{"k":1.5}`))
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
}

func TestDecodeRejectsNull(t *testing.T) {
	_, err := Decode([]byte(`{"k":null}`))
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"k":`))
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`1 2`))
	require.Error(t, err)
	assert.True(t, fault.IsEncodingError(err))
}
