package store

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tessera/internal/fault"
	"github.com/roach88/tessera/internal/ir"
)

// Insert stores a representation and returns its handle.
//
// The value is canonicalized and addressed; if a slot with that address
// already exists the existing slot's reference count is incremented and its
// handle returned (the distinct-slot count does not change). Otherwise a new
// slot is allocated with reference count 1.
//
// Concurrent inserts of identical content converge on one slot: the first
// holder of the shard lock allocates, everyone else takes the dedup path.
//
// Fails with ENCODING_ERROR when the value is not canonicalizable and
// CAPACITY_EXCEEDED when a configured limit is hit.
func (s *Store) Insert(tag ir.Tag, v ir.Value) (Handle, error) {
	if s.closed.Load() {
		return Handle{}, ErrClosed
	}

	canonical, err := ir.MarshalCanonical(v)
	if err != nil {
		return Handle{}, err
	}
	if s.maxValueBytes > 0 && int64(len(canonical)) > s.maxValueBytes {
		return Handle{}, fault.NewCapacityExceededError("value_bytes", s.maxValueBytes)
	}
	addr, err := ir.AddressOfCanonical(tag, canonical)
	if err != nil {
		return Handle{}, err
	}

	sh, shardIdx := s.shardForAddr(addr)

	sh.mu.Lock()
	if id, ok := sh.byAddr[addr]; ok {
		sl := sh.byID[id]
		sl.refs++
		sh.mu.Unlock()
		s.dedupHits.Add(1)
		return Handle{Slot: id, Addr: addr, Tag: tag}, nil
	}

	if err := s.reserveSlot(); err != nil {
		sh.mu.Unlock()
		return Handle{}, err
	}

	sh.seq++
	id := sh.seq<<s.shardBits | shardIdx
	sh.byAddr[addr] = id
	sh.byID[id] = &slot{
		id:        id,
		addr:      addr,
		tag:       tag,
		canonical: canonical,
		refs:      1,
	}
	sh.mu.Unlock()
	s.inserts.Add(1)

	if s.recorder != nil {
		if err := s.recorder.RecordObject(addr, tag, canonical); err != nil {
			s.recorderErrors.Add(1)
			slog.Warn("object recorder failed",
				"addr", addr.Hex(),
				"tag", tag,
				"error", err)
		}
	}

	return Handle{Slot: id, Addr: addr, Tag: tag}, nil
}

// reserveSlot claims one unit of slot capacity. CAS keeps MaxSlots exact
// even when shards race.
func (s *Store) reserveSlot() error {
	for {
		cur := s.slotCount.Load()
		if s.maxSlots > 0 && cur >= s.maxSlots {
			return fault.NewCapacityExceededError("slots", s.maxSlots)
		}
		if s.slotCount.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

// Release decrements the handle's reference count. At zero the slot becomes
// eligible for eviction: evicted immediately under EvictUnreferenced,
// retained until Sweep under RetainForever.
//
// Fails with NOT_FOUND if the slot is already evicted, and a plain error on
// refcount underflow (a release without a matching insert).
func (s *Store) Release(h Handle) error {
	if s.closed.Load() {
		return ErrClosed
	}

	sh := s.shardForSlot(h.Slot)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sl, ok := sh.byID[h.Slot]
	if !ok || sl.addr != h.Addr {
		return fault.NewSlotNotFoundError(h.Slot)
	}
	if sl.refs == 0 {
		return fmt.Errorf("release of slot %d without a matching insert", h.Slot)
	}

	sl.refs--
	if sl.refs == 0 && s.policy == EvictUnreferenced {
		s.evictLocked(sh, sl)
	}
	return nil
}

// Sweep evicts every unreferenced slot and returns how many were evicted.
// This is the explicit collection point for the RetainForever policy.
func (s *Store) Sweep() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, sl := range sh.byID {
			if sl.refs == 0 {
				s.evictLocked(sh, sl)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted, nil
}

// evictLocked removes a slot from its shard's indices. Caller holds the
// shard's write lock.
func (s *Store) evictLocked(sh *shard, sl *slot) {
	// The two indices must agree; disagreement means the arena is corrupt
	// and there is no defined recovery.
	if sh.byAddr[sl.addr] != sl.id {
		panic(fmt.Sprintf("store: slot %d and address index disagree", sl.id))
	}
	delete(sh.byAddr, sl.addr)
	delete(sh.byID, sl.id)
	s.slotCount.Add(-1)
	s.evictions.Add(1)
}
