// Package store implements the sharded in-memory cache engine: spec.md
// §4.1 (shard store & hash table). Ground: _examples/launix-de-memcp
// storage/shard.go (per-shard ownership, locking discipline) and
// storage/cachemap.go (RWMutex-guarded map of string keys to values),
// generalized to the incrementally-rehashing two-table dictionary and TTL
// semantics spec.md requires, which a teacher using Go's builtin map did
// not need.
package store

import (
	"time"

	"github.com/launix-de/icache/internal/slot"
)

// Store owns the fixed array of shards: slot.NumSlots data shards plus one
// administrative shard at slot.ConfigSlot (spec.md §3: "N shards (default
// 16384 + 1 'config' shard at index 0x4000)").
type Store struct {
	shards [slot.NumSlots + 1]*Shard
}

// New allocates a Store with all shards created (spec.md §3 Lifecycles:
// "Shards are created at startup, destroyed at shutdown").
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = NewShard()
	}
	return s
}

// NumShards is the total shard count including the config shard.
func (s *Store) NumShards() int { return len(s.shards) }

// Shard returns the shard for a given slot index (0..NumSlots, inclusive).
func (s *Store) Shard(slotIdx int) *Shard { return s.shards[slotIdx] }

// ShardForKey resolves a key to its owning shard via the hash-tag-aware
// slot function (spec.md §4.1 Hash tags).
func (s *Store) ShardForKey(key []byte) (*Shard, int) {
	idx := slot.KeyToSlot(key)
	return s.shards[idx], idx
}

// ConfigShard returns the administrative shard (slot 0x4000), addressed by
// commands whose first_key is 0 (spec.md §4.3).
func (s *Store) ConfigShard() *Shard { return s.shards[slot.ConfigSlot] }

// AllShards returns every data shard (excluding the config shard), for the
// rehasher's periodic sweep (spec.md §4.6).
func (s *Store) AllShards() []*Shard { return s.shards[:slot.NumSlots] }

// Now is overridable in tests; production code always calls time.Now.
var Now = time.Now
