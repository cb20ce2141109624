// Package storage defines the per-shard Store abstraction backing a single
// key-value database, and its two implementations.
//
// # Overview
//
// Each shard in the server owns exactly one Store. Store combines plain
// key/value access with a TTL index: SetExpire records an absolute
// expiration time for a key, ScanExpired walks that index in ascending
// expiration order so the index manager's scanner pool can find candidates
// cheaply, and ExpireKeyIfNeeded performs the conditional delete the
// deleter pool issues, re-checking expiry under a write transaction since
// the key may have been refreshed since it was scanned.
//
// # Implementations
//
// BadgerStore is the production implementation, one github.com/dgraph-io/badger/v4
// database per shard rooted at its own directory. Keys are namespaced by a
// one-byte-plus-colon prefix: "d:" for data, "e:" for a key's current TTL
// (point lookup), "t:" for the TTL scan index, encoded expireAt-leading so
// badger's lexicographic iteration order is also expiration order.
//
// MemoryStore is a sync.RWMutex-guarded map used by tests and by
// engine="memory" deployments that don't need persistence across restarts.
//
// # Administrative state
//
// Mode, Pause/Resume, and Destroy model the lifecycle a shard goes through
// under server administration (internal/server's DestroyStore/SetStoreMode):
// a store is paused before it can be destroyed, and StoreNone marks a
// destroyed store so it is never dispatched to again.
package storage
