// Package segment implements shard routing (key -> shard index) and the
// per-shard lock each dispatched command and each administrative operation
// acquires before touching a shard's Store.
//
// Routing is a two-stage hash, ported from the original's
// SegmentMgrFnvHash64: an FNV-64a hash of the key is reduced modulo
// chunkSize to a chunk id, then the chunk id is reduced modulo the shard
// count to a shard index. The intermediate chunk layer is what lets a
// cluster-mode deployment migrate one chunk's worth of keys between shards
// without rehashing every key in the shard (this server, per §1, never
// enables cluster mode, but the routing math is kept faithful to the
// original so a future migrator has the same address space to work with).
package segment

import (
	"hash/fnv"
	"sync"
)

// LockMode is the intent a caller declares when acquiring a shard lock.
// Go's sync.RWMutex has only two modes (shared, exclusive); LockIS and
// LockIX both map onto the shared mode since intent-shared and
// intent-exclusive holders never conflict with each other, only with a
// true exclusive (LockX) holder.
type LockMode int

const (
	// LockIS is taken by read commands.
	LockIS LockMode = iota
	// LockIX is taken by write commands.
	LockIX
	// LockX is taken by administrative operations (DestroyStore, SetStoreMode).
	LockX
)

// Manager hashes keys to shard indices and hands out per-shard locks.
type Manager struct {
	numShards int
	chunkSize int
	locks     []sync.RWMutex
}

// New builds a Manager for numShards shards, routing keys through
// chunkSize intermediate chunks.
func New(numShards, chunkSize int) *Manager {
	return &Manager{
		numShards: numShards,
		chunkSize: chunkSize,
		locks:     make([]sync.RWMutex, numShards),
	}
}

// ChunkForKey returns the chunk id a key hashes to, independent of the
// current shard count; it is the address a cluster migrator would move.
func (m *Manager) ChunkForKey(key string) int {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int(h.Sum64() % uint64(m.chunkSize))
}

// ShardForKey returns the shard index a key routes to.
func (m *Manager) ShardForKey(key string) int {
	return m.ShardForChunk(m.ChunkForKey(key))
}

// ShardForChunk reduces a chunk id to a shard index.
func (m *Manager) ShardForChunk(chunk int) int {
	return chunk % m.numShards
}

// NumShards returns the shard count the manager was built with.
func (m *Manager) NumShards() int {
	return m.numShards
}

// Lock acquires shardID's lock in the given mode. Unlock must be called
// with the same mode.
func (m *Manager) Lock(shardID int, mode LockMode) {
	switch mode {
	case LockX:
		m.locks[shardID].Lock()
	default:
		m.locks[shardID].RLock()
	}
}

// Unlock releases shardID's lock acquired in the given mode.
func (m *Manager) Unlock(shardID int, mode LockMode) {
	switch mode {
	case LockX:
		m.locks[shardID].Unlock()
	default:
		m.locks[shardID].RUnlock()
	}
}
