// Package syncutil holds the lock-striping helpers shared by the in-process
// counters.
package syncutil

import (
	"hash/fnv"
	"sync"
)

// ShardCount is the fixed number of stripes in a ShardedMap.
const ShardCount = 256

// ShardedMap is a string-keyed map split across a fixed pool of mutexes.
// Keys that hash to different shards never contend; memory for the locks
// is bounded regardless of how many keys are seen.
type ShardedMap[V any] struct {
	shards [ShardCount]shard[V]
}

type shard[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

// With runs fn with the shard owning key locked. fn may read and write any
// entry of the shard map, but must not retain it.
func (s *ShardedMap[V]) With(key string, fn func(m map[string]V)) {
	sh := &s.shards[Index(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.m == nil {
		sh.m = make(map[string]V)
	}
	fn(sh.m)
}

// Range locks each shard in turn and hands its map to fn.
func (s *ShardedMap[V]) Range(fn func(m map[string]V)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		if sh.m != nil {
			fn(sh.m)
		}
		sh.mu.Unlock()
	}
}

// Len counts entries across all shards.
func (s *ShardedMap[V]) Len() int {
	n := 0
	s.Range(func(m map[string]V) { n += len(m) })
	return n
}

// Index returns the shard a key belongs to.
func Index(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % ShardCount
}
