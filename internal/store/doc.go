// Package store provides the concurrent, content-addressed object store.
//
// The store is an arena of slots partitioned into independently locked
// shards. A slot holds one representation in canonical form together with
// its tag, address, and reference count. Handles are index-based references
// into the arena; they never own storage.
//
// # Critical Patterns
//
// Content-addressed deduplication:
//   - The address digests the tag and the canonical encoding, so equal
//     addresses imply equal tags and equal canonical bytes
//   - Concurrent inserts of identical content converge on one slot under
//     the owning shard's lock; no caller ever observes a transient duplicate
//
// Canonical storage:
//   - Slots hold canonical bytes, not live values; Get decodes a fresh
//     value on every call, so no caller can mutate stored state
//   - Values are therefore returned in canonical (NFC) form
//
// Slot identifiers:
//   - slot = seq<<shardBits | shardIndex, allocated under the shard lock
//   - The shard index rides in the low bits, so handle lookup is O(1)
//     with no global directory lock
//   - Sequence numbers start at 1 and are never reused; the zero Handle
//     resolves to NotFound
//
// # Concurrency Model
//
//   - Insert/Release/Sweep take the owning shard's write lock
//   - Get/LookupAddr take the read lock; decoding happens outside it
//   - The live-slot count is a CAS-reserved atomic so MaxSlots is exact
//     across shards
package store
