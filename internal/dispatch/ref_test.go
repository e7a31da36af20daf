package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want Ref
	}{
		{"uppercase", Ref{Name: "uppercase"}},
		{"text/uppercase", Ref{Namespace: "text", Name: "uppercase"}},
		{"core/add", Ref{Namespace: "core", Name: "add"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
			assert.Equal(t, tt.want.Namespace != "", got.Qualified())
		})
	}
}

func TestParseRefMalformed(t *testing.T) {
	for _, in := range []string{"", "/uppercase", "text/", "a/b/c", "/"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRef(in)
			assert.Error(t, err)
		})
	}
}
