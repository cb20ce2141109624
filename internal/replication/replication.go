// Package replication implements the two transport-takeover handshakes
// named in §6: FULLSYNC, which streams a point-in-time snapshot of a
// shard to a freshly connected replica, and INCRSYNC, which registers a
// connection as a subscriber of a shard's subsequent writes. Both take
// ownership of the underlying socket via redcon.Conn.Detach(), the direct
// Go analogue of the original's borrowConn() transport steal (§9).
package replication

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/redcon"

	"github.com/dreamware/redisd/internal/storage"
)

// subscriber is one INCRSYNC-registered connection for a shard.
type subscriber struct {
	conn       redcon.DetachedConn
	dstStoreID int
	lastBinlog int64
}

// Manager owns every shard's set of incremental-sync subscribers and
// services fullsync requests.
type Manager struct {
	stores []storage.Store

	mu          sync.Mutex
	subscribers map[int][]*subscriber // shardID -> subscribers
	disabled    map[int]bool          // shardID -> stopped (StopStore)
}

// New builds a Manager over the server's shard stores.
func New(stores []storage.Store) *Manager {
	return &Manager{
		stores:      stores,
		subscribers: make(map[int][]*subscriber),
		disabled:    make(map[int]bool),
	}
}

// SupplyFullSync takes ownership of conn and streams a full snapshot of
// storeID's data as a sequence of RESP arrays (a `[FULLSYNC_BEGIN, id]`
// pair, then `[SET, key, value]` triples, then a `[FULLSYNC_DONE, id]`
// pair carrying the same snapshot id), then closes the connection. It runs in its own goroutine so the caller (ProcessRequest)
// can return immediately, per §4.2 step 4.
func (m *Manager) SupplyFullSync(conn redcon.Conn, storeID int) error {
	if storeID < 0 || storeID >= len(m.stores) {
		return fmt.Errorf("replication: unknown store id %d", storeID)
	}
	detached := conn.Detach()
	store := m.stores[storeID]

	// Tagging each snapshot with a fresh id lets a replica that reconnects
	// mid-transfer tell a stale snapshot apart from the new one it's about
	// to receive, rather than relying on wall-clock ordering.
	snapshotID := uuid.New().String()

	go func() {
		defer detached.Close()
		detached.WriteArray(2)
		detached.WriteBulkString("FULLSYNC_BEGIN")
		detached.WriteBulkString(snapshotID)
		if err := detached.Flush(); err != nil {
			log.Printf("replication: fullsync store %d failed: %v", storeID, err)
			return
		}
		err := store.Iterate(func(key string, value []byte) error {
			detached.WriteArray(3)
			detached.WriteBulkString("SET")
			detached.WriteBulkString(key)
			detached.WriteBulk(value)
			return detached.Flush()
		})
		if err != nil {
			log.Printf("replication: fullsync store %d (snapshot %s) failed: %v", storeID, snapshotID, err)
			return
		}
		detached.WriteArray(2)
		detached.WriteBulkString("FULLSYNC_DONE")
		detached.WriteBulkString(snapshotID)
		_ = detached.Flush()
	}()
	return nil
}

// RegisterIncrSync takes ownership of conn and registers it as a
// subscriber of storeID's subsequent writes, tagged with the replica's own
// dstStoreID and the binlog position it resumed from, per §4.2 step 5.
func (m *Manager) RegisterIncrSync(conn redcon.Conn, storeID, dstStoreID int, binlogID int64) error {
	if storeID < 0 || storeID >= len(m.stores) {
		return fmt.Errorf("replication: unknown store id %d", storeID)
	}
	detached := conn.Detach()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[storeID] = append(m.subscribers[storeID], &subscriber{
		conn:       detached,
		dstStoreID: dstStoreID,
		lastBinlog: binlogID,
	})
	return nil
}

// Propagate forwards a SET/DEL as a binlog entry to every INCRSYNC
// subscriber of storeID. Dispatch (internal/command) calls this after a
// successful write, best-effort: a write failure to one subscriber's
// socket does not fail the original command, it only drops that replica
// (which will notice via its own connection error and can re-handshake).
func (m *Manager) Propagate(storeID int, op, key string, value []byte) {
	m.mu.Lock()
	subs := append([]*subscriber(nil), m.subscribers[storeID]...)
	m.mu.Unlock()

	var failed []*subscriber
	for _, sub := range subs {
		sub.conn.WriteArray(3)
		sub.conn.WriteBulkString(op)
		sub.conn.WriteBulkString(key)
		if value != nil {
			sub.conn.WriteBulk(value)
		} else {
			sub.conn.WriteNull()
		}
		if err := sub.conn.Flush(); err != nil {
			log.Printf("replication: dropping subscriber of store %d: %v", storeID, err)
			_ = sub.conn.Close()
			failed = append(failed, sub)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.subscribers[storeID][:0]
	for _, sub := range m.subscribers[storeID] {
		if !slices.Contains(failed, sub) {
			kept = append(kept, sub)
		}
	}
	m.subscribers[storeID] = kept
}

// StopStore closes and drops every subscriber of storeID and marks it
// disabled, called by DestroyStore before the shard itself is destroyed.
func (m *Manager) StopStore(storeID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subscribers[storeID] {
		_ = sub.conn.Close()
	}
	delete(m.subscribers, storeID)
	m.disabled[storeID] = true
}

// Shutdown closes every subscriber connection across every shard.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, subs := range m.subscribers {
		for _, sub := range subs {
			_ = sub.conn.Close()
		}
	}
	m.subscribers = make(map[int][]*subscriber)
}
