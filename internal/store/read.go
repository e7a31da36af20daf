package store

import (
	"github.com/roach88/tessera/internal/fault"
	"github.com/roach88/tessera/internal/ir"
)

// Get returns the representation the handle references.
//
// The stored canonical bytes are decoded into a fresh value on every call,
// so callers can never mutate stored state. Values come back in canonical
// form (NFC-normalized strings).
//
// Fails with NOT_FOUND if the slot was evicted or never existed, and
// TYPE_MISMATCH if the handle's tag disagrees with the stored tag.
func (s *Store) Get(h Handle) (ir.Value, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	sh := s.shardForSlot(h.Slot)

	sh.mu.RLock()
	sl, ok := sh.byID[h.Slot]
	if !ok || sl.addr != h.Addr {
		sh.mu.RUnlock()
		return nil, fault.NewSlotNotFoundError(h.Slot)
	}
	if sl.tag != h.Tag {
		want, got := h.Tag, sl.tag
		sh.mu.RUnlock()
		return nil, fault.NewTypeMismatchError(-1, string(want), string(got))
	}
	canonical := sl.canonical
	sh.mu.RUnlock()

	// Canonical bytes are immutable once stored; decoding outside the lock
	// is safe even if the slot is evicted concurrently.
	return ir.Decode(canonical)
}

// LookupAddr resolves a content address to a live handle. This is how
// collaborators that persist addresses re-reference data after a restart,
// since slot identifiers are process-scoped.
func (s *Store) LookupAddr(addr ir.Address) (Handle, bool) {
	if s.closed.Load() {
		return Handle{}, false
	}

	sh, _ := s.shardForAddr(addr)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	id, ok := sh.byAddr[addr]
	if !ok {
		return Handle{}, false
	}
	return Handle{Slot: id, Addr: addr, Tag: sh.byID[id].tag}, true
}

// Contains reports whether a live slot holds the given address.
func (s *Store) Contains(addr ir.Address) bool {
	_, ok := s.LookupAddr(addr)
	return ok
}
