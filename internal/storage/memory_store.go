package storage

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is an in-memory Store, adapted from the teacher's original
// MemoryStore: same sync.RWMutex-guarded map, extended with the TTL index
// and administrative controls the Store interface now requires. Used by
// tests and by engine="memory" deployments that don't need persistence.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	ttl  map[string]ttlVal // key -> (expireAt, valueType)

	mode   atomic.Int32
	paused atomic.Bool

	now func() int64 // overridable for tests
}

type ttlVal struct {
	expireAt  int64
	valueType string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
		ttl:  make(map[string]ttlVal),
		now:  func() int64 { return time.Now().Unix() },
	}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists {
		return nil, ErrKeyNotFound
	}
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.ttl, key)
	return nil
}

func (m *MemoryStore) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totalBytes := 0
	for _, value := range m.data {
		totalBytes += len(value)
	}
	return StoreStats{Keys: len(m.data), Bytes: totalBytes}
}

func (m *MemoryStore) Iterate(fn func(key string, value []byte) error) error {
	m.mu.RLock()
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) SetExpire(key string, valueType string, expireAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expireAt <= 0 {
		delete(m.ttl, key)
		return nil
	}
	m.ttl[key] = ttlVal{expireAt: expireAt, valueType: valueType}
	return nil
}

func (m *MemoryStore) ExpireAt(key string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.ttl[key]
	return v.expireAt, ok
}

func (m *MemoryStore) ExpireKeyIfNeeded(key string, now int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.ttl[key]
	if !ok || v.expireAt > now {
		return false, nil
	}
	delete(m.data, key)
	delete(m.ttl, key)
	return true, nil
}

// ScanExpired walks the TTL map in (expireAt, key) order, matching the
// badger implementation's index ordering, even though the in-memory map
// itself carries no such order.
func (m *MemoryStore) ScanExpired(cursor []byte, now int64, limit int) ([]TTLEntry, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type indexed struct {
		raw []byte
		TTLEntry
	}
	all := make([]indexed, 0, len(m.ttl))
	for key, v := range m.ttl {
		if v.expireAt > now {
			continue
		}
		all = append(all, indexed{
			raw:      ttlIndexKey(v.expireAt, key),
			TTLEntry: TTLEntry{PrimaryKey: key, ValueType: v.valueType, ExpireAt: v.expireAt},
		})
	}
	sort.Slice(all, func(i, j int) bool { return string(all[i].raw) < string(all[j].raw) })

	start := 0
	if len(cursor) > 0 {
		for i, e := range all {
			if string(e.raw) > string(cursor) {
				start = i
				break
			}
			start = i + 1
		}
	}

	var entries []TTLEntry
	var next []byte
	for _, e := range all[start:] {
		entries = append(entries, e.TTLEntry)
		next = e.raw
		if len(entries) >= limit {
			break
		}
	}
	return entries, next, nil
}

func (m *MemoryStore) CurrentTime() int64 { return m.now() }

// SetNowForTest overrides the store's clock with a fixed value, so tests
// can exercise TTL expiry without racing the real wall clock.
func (m *MemoryStore) SetNowForTest(fixed int64) {
	m.now = func() int64 { return fixed }
}

func (m *MemoryStore) Mode() Mode     { return Mode(m.mode.Load()) }
func (m *MemoryStore) SetMode(mo Mode) { m.mode.Store(int32(mo)) }

func (m *MemoryStore) Pause()       { m.paused.Store(true) }
func (m *MemoryStore) Resume()      { m.paused.Store(false) }
func (m *MemoryStore) Paused() bool { return m.paused.Load() }

func (m *MemoryStore) Empty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data) == 0
}

func (m *MemoryStore) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	m.ttl = make(map[string]ttlVal)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
