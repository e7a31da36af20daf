package store

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/roach88/tessera/internal/ir"
)

// DefaultShards is the default shard count. Must be a power of two.
const DefaultShards = 16

// maxShards bounds the shard count so the shard index fits the low byte of
// the address used for routing.
const maxShards = 256

// ErrClosed is returned by every operation after Close. Calls on a closed
// store are a wiring bug, not part of the fault taxonomy.
var ErrClosed = errors.New("store is closed")

// RetentionPolicy controls what happens to a slot when its reference count
// reaches zero.
type RetentionPolicy string

const (
	// RetainForever keeps unreferenced slots until Sweep or Close.
	// This is the default.
	RetainForever RetentionPolicy = "retain-forever"

	// EvictUnreferenced evicts a slot as soon as its reference count
	// reaches zero.
	EvictUnreferenced RetentionPolicy = "evict-unreferenced"
)

// ParseRetentionPolicy maps the configuration spelling to a policy.
func ParseRetentionPolicy(s string) (RetentionPolicy, error) {
	switch RetentionPolicy(s) {
	case RetainForever, EvictUnreferenced:
		return RetentionPolicy(s), nil
	case "":
		return RetainForever, nil
	default:
		return "", fmt.Errorf("unknown retention policy %q", s)
	}
}

// Recorder observes the first insert of each distinct representation.
// The journal implements it. Called outside shard locks; failures are
// logged and counted, never surfaced to the inserting caller.
type Recorder interface {
	RecordObject(addr ir.Address, tag ir.Tag, canonical []byte) error
}

// Option configures a Store.
type Option func(*Store)

// WithShards sets the shard count. Must be a power of two in [1, 256].
//
// Default: 16 (DefaultShards).
func WithShards(n int) Option {
	return func(s *Store) {
		s.shardCount = n
	}
}

// WithMaxSlots bounds the number of live slots. 0 means unlimited.
// Inserts beyond the bound fail with CAPACITY_EXCEEDED; deduplicated
// inserts never consume capacity.
func WithMaxSlots(n int64) Option {
	return func(s *Store) {
		s.maxSlots = n
	}
}

// WithMaxValueBytes bounds the canonical size of a single representation.
// 0 means unlimited.
func WithMaxValueBytes(n int64) Option {
	return func(s *Store) {
		s.maxValueBytes = n
	}
}

// WithRetention sets the retention policy.
//
// Default: RetainForever.
func WithRetention(p RetentionPolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	// Slots is the live (distinct) slot count.
	Slots int64

	// Inserts counts inserts that allocated a new slot.
	Inserts int64

	// DedupHits counts inserts that resolved to an existing slot.
	DedupHits int64

	// Evictions counts slots removed by Release or Sweep.
	Evictions int64

	// RecorderErrors counts Recorder failures (logged, not surfaced).
	RecorderErrors int64
}

// slot is one arena entry. refs is guarded by the owning shard's lock;
// the remaining fields are immutable after creation.
type slot struct {
	id        uint64
	addr      ir.Address
	tag       ir.Tag
	canonical []byte
	refs      int64
}

// shard is an independently locked partition of the arena.
type shard struct {
	mu     sync.RWMutex
	byAddr map[ir.Address]uint64
	byID   map[uint64]*slot
	seq    uint64
}

// Store is the concurrent content-addressed object store. Safe for use
// from any number of goroutines.
type Store struct {
	shards    []*shard
	shardBits uint

	shardCount    int
	maxSlots      int64
	maxValueBytes int64
	policy        RetentionPolicy
	recorder      Recorder

	slotCount      atomic.Int64
	inserts        atomic.Int64
	dedupHits      atomic.Int64
	evictions      atomic.Int64
	recorderErrors atomic.Int64

	closed atomic.Bool
}

// New creates a Store. Options default to 16 shards, unlimited capacity,
// and the RetainForever policy.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		shardCount: DefaultShards,
		policy:     RetainForever,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.shardCount < 1 || s.shardCount > maxShards || bits.OnesCount(uint(s.shardCount)) != 1 {
		return nil, fmt.Errorf("shard count must be a power of two in [1, %d], got %d", maxShards, s.shardCount)
	}
	if _, err := ParseRetentionPolicy(string(s.policy)); err != nil {
		return nil, err
	}
	if s.maxSlots < 0 {
		return nil, fmt.Errorf("max slots must be >= 0, got %d", s.maxSlots)
	}
	if s.maxValueBytes < 0 {
		return nil, fmt.Errorf("max value bytes must be >= 0, got %d", s.maxValueBytes)
	}

	s.shardBits = uint(bits.TrailingZeros(uint(s.shardCount)))
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{
			byAddr: make(map[ir.Address]uint64),
			byID:   make(map[uint64]*slot),
		}
	}
	return s, nil
}

// shardForAddr routes an address to its owning shard by the first digest
// byte. Uniformity comes from SHA-256.
func (s *Store) shardForAddr(addr ir.Address) (*shard, uint64) {
	idx := uint64(addr[0]) & uint64(s.shardCount-1)
	return s.shards[idx], idx
}

// shardForSlot recovers the owning shard from a slot identifier's low bits.
func (s *Store) shardForSlot(id uint64) *shard {
	return s.shards[id&uint64(s.shardCount-1)]
}

// Len returns the live (distinct) slot count.
func (s *Store) Len() int {
	return int(s.slotCount.Load())
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	return Stats{
		Slots:          s.slotCount.Load(),
		Inserts:        s.inserts.Load(),
		DedupHits:      s.dedupHits.Load(),
		Evictions:      s.evictions.Load(),
		RecorderErrors: s.recorderErrors.Load(),
	}
}

// Close tears the store down. Subsequent operations fail with ErrClosed.
// Idempotent.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
