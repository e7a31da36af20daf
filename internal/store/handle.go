package store

import (
	"fmt"

	"github.com/roach88/tessera/internal/ir"
)

// Handle is an opaque, copyable reference to a stored representation:
// slot identifier, content address, and type tag. Handles carry no
// ownership - the store exclusively owns the underlying value.
//
// Handles are pure data, comparable with ==. Two inserts of
// content-identical values yield handles with equal addresses and, under
// deduplication, equal slots.
type Handle struct {
	// Slot identifies the arena slot. Process-scoped: slot identifiers are
	// not stable across restarts, addresses are.
	Slot uint64

	// Addr is the content address of the stored representation.
	Addr ir.Address

	// Tag is the representation's type tag.
	Tag ir.Tag
}

// IsZero reports whether h is the zero Handle, which never references a
// stored representation.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// String renders the handle for logs: slot, shortened address, tag.
func (h Handle) String() string {
	return fmt.Sprintf("%d@%s:%s", h.Slot, h.Addr.Hex()[:12], h.Tag)
}
