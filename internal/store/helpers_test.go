package store

import (
	"testing"

	"github.com/roach88/tessera/internal/ir"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInsert(t *testing.T, s *Store, tag ir.Tag, v ir.Value) Handle {
	t.Helper()

	h, err := s.Insert(tag, v)
	if err != nil {
		t.Fatalf("Insert(%s) failed: %v", tag, err)
	}
	return h
}
