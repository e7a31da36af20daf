package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/roach88/tessera/internal/fault"
	"github.com/roach88/tessera/internal/ir"
)

func TestInsert_ReturnsLiveHandle(t *testing.T) {
	s := newTestStore(t)

	h := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})

	if h.IsZero() {
		t.Error("Insert returned the zero handle")
	}
	if h.Slot == 0 {
		t.Error("slot identifier should never be 0")
	}
	if h.Addr.IsZero() {
		t.Error("handle address should be set")
	}
	if h.Tag != "json" {
		t.Errorf("handle tag = %q, want %q", h.Tag, "json")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestInsert_DedupIdenticalContent(t *testing.T) {
	s := newTestStore(t)

	h1 := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})
	h2 := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})

	if h1.Addr != h2.Addr {
		t.Errorf("addresses differ: %s vs %s", h1.Addr, h2.Addr)
	}
	if h1.Slot != h2.Slot {
		t.Errorf("slots differ under dedup: %d vs %d", h1.Slot, h2.Slot)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (second insert must not add a slot)", s.Len())
	}

	stats := s.Stats()
	if stats.Inserts != 1 || stats.DedupHits != 1 {
		t.Errorf("stats = %+v, want Inserts=1 DedupHits=1", stats)
	}
}

func TestInsert_DedupIgnoresKeyOrder(t *testing.T) {
	s := newTestStore(t)

	h1 := mustInsert(t, s, "json", ir.Object{"a": ir.Int(1), "b": ir.Int(2)})
	h2 := mustInsert(t, s, "json", ir.Object{"b": ir.Int(2), "a": ir.Int(1)})

	if h1 != h2 {
		t.Errorf("handles differ for identical canonical content: %v vs %v", h1, h2)
	}
}

func TestInsert_DistinctContentDistinctSlots(t *testing.T) {
	s := newTestStore(t)

	h1 := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})
	h2 := mustInsert(t, s, "json", ir.Object{"k": ir.Int(2)})

	if h1.Addr == h2.Addr {
		t.Error("distinct content should have distinct addresses")
	}
	if h1.Slot == h2.Slot {
		t.Error("distinct content should occupy distinct slots")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestInsert_TagParticipatesInIdentity(t *testing.T) {
	s := newTestStore(t)

	h1 := mustInsert(t, s, "text", ir.String("hello"))
	h2 := mustInsert(t, s, "word", ir.String("hello"))

	if h1.Addr == h2.Addr {
		t.Error("same value under different tags must have different addresses")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestInsert_EncodingError(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Insert("json", ir.Object{"k": ir.Null{}})
	if !fault.IsEncodingError(err) {
		t.Errorf("err = %v, want ENCODING_ERROR", err)
	}
	if s.Len() != 0 {
		t.Errorf("failed insert must not allocate a slot, Len() = %d", s.Len())
	}

	_, err = s.Insert("", ir.String("x"))
	if !fault.IsEncodingError(err) {
		t.Errorf("empty tag: err = %v, want ENCODING_ERROR", err)
	}
}

func TestInsert_MaxSlots(t *testing.T) {
	s := newTestStore(t, WithMaxSlots(2))

	mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})
	mustInsert(t, s, "json", ir.Object{"k": ir.Int(2)})

	// Dedup resolves to an existing slot and must not consume capacity.
	mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})

	_, err := s.Insert("json", ir.Object{"k": ir.Int(3)})
	if !fault.IsCapacityExceeded(err) {
		t.Errorf("err = %v, want CAPACITY_EXCEEDED", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestInsert_CapacityFreedByEviction(t *testing.T) {
	s := newTestStore(t, WithMaxSlots(1), WithRetention(EvictUnreferenced))

	h := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})
	if _, err := s.Insert("json", ir.Object{"k": ir.Int(2)}); !fault.IsCapacityExceeded(err) {
		t.Fatalf("err = %v, want CAPACITY_EXCEEDED", err)
	}

	if err := s.Release(h); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	mustInsert(t, s, "json", ir.Object{"k": ir.Int(2)})
}

func TestInsert_MaxValueBytes(t *testing.T) {
	s := newTestStore(t, WithMaxValueBytes(16))

	mustInsert(t, s, "text", ir.String("short"))

	_, err := s.Insert("text", ir.String(strings.Repeat("x", 64)))
	if !fault.IsCapacityExceeded(err) {
		t.Errorf("err = %v, want CAPACITY_EXCEEDED", err)
	}
}

func TestRelease_EvictUnreferenced(t *testing.T) {
	s := newTestStore(t, WithRetention(EvictUnreferenced))

	// Two inserts of identical content: one slot, two references.
	h := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})
	mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})

	if err := s.Release(h); err != nil {
		t.Fatalf("first Release() failed: %v", err)
	}
	if _, err := s.Get(h); err != nil {
		t.Fatalf("slot evicted while still referenced: %v", err)
	}

	if err := s.Release(h); err != nil {
		t.Fatalf("second Release() failed: %v", err)
	}
	if _, err := s.Get(h); !fault.IsNotFound(err) {
		t.Errorf("Get after eviction: err = %v, want NOT_FOUND", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after eviction", s.Len())
	}
}

func TestRelease_RetainForeverKeepsSlot(t *testing.T) {
	s := newTestStore(t)

	h := mustInsert(t, s, "text", ir.String("keep me"))
	if err := s.Release(h); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	// Unreferenced but retained until an explicit sweep.
	if _, err := s.Get(h); err != nil {
		t.Errorf("Get after release under retain-forever failed: %v", err)
	}

	evicted, err := s.Sweep()
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if evicted != 1 {
		t.Errorf("Sweep() evicted %d, want 1", evicted)
	}
	if _, err := s.Get(h); !fault.IsNotFound(err) {
		t.Errorf("Get after sweep: err = %v, want NOT_FOUND", err)
	}
}

func TestRelease_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.Release(Handle{Slot: 17})
	if !fault.IsNotFound(err) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestRelease_Underflow(t *testing.T) {
	s := newTestStore(t)

	h := mustInsert(t, s, "text", ir.String("x"))
	if err := s.Release(h); err != nil {
		t.Fatalf("first Release() failed: %v", err)
	}

	err := s.Release(h)
	if err == nil {
		t.Fatal("expected error on refcount underflow, got nil")
	}
	if fault.CodeOf(err) != "" {
		t.Errorf("underflow should be a plain error, got fault code %s", fault.CodeOf(err))
	}
}

func TestSweep_OnlyEvictsUnreferenced(t *testing.T) {
	s := newTestStore(t)

	kept := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})
	dropped := mustInsert(t, s, "json", ir.Object{"k": ir.Int(2)})
	if err := s.Release(dropped); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	evicted, err := s.Sweep()
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if evicted != 1 {
		t.Errorf("Sweep() evicted %d, want 1", evicted)
	}

	if _, err := s.Get(kept); err != nil {
		t.Errorf("referenced slot was swept: %v", err)
	}
	if _, err := s.Get(dropped); !fault.IsNotFound(err) {
		t.Errorf("unreferenced slot survived sweep: err = %v", err)
	}
}

type captureRecorder struct {
	calls []ir.Address
	err   error
}

func (r *captureRecorder) RecordObject(addr ir.Address, tag ir.Tag, canonical []byte) error {
	r.calls = append(r.calls, addr)
	return r.err
}

func TestInsert_RecorderSeesFirstInsertOnly(t *testing.T) {
	rec := &captureRecorder{}
	s := newTestStore(t, WithRecorder(rec))

	h := mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})
	mustInsert(t, s, "json", ir.Object{"k": ir.Int(1)})

	if len(rec.calls) != 1 {
		t.Fatalf("recorder called %d times, want 1", len(rec.calls))
	}
	if rec.calls[0] != h.Addr {
		t.Errorf("recorder saw addr %s, want %s", rec.calls[0], h.Addr)
	}
}

func TestInsert_RecorderFailureDoesNotFailInsert(t *testing.T) {
	rec := &captureRecorder{err: errors.New("disk full")}
	s := newTestStore(t, WithRecorder(rec))

	h := mustInsert(t, s, "text", ir.String("survives"))
	if _, err := s.Get(h); err != nil {
		t.Errorf("Get() failed: %v", err)
	}

	if got := s.Stats().RecorderErrors; got != 1 {
		t.Errorf("RecorderErrors = %d, want 1", got)
	}
}
