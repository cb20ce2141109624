package storage

import (
	"encoding/binary"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	dataPrefix  = "d:"
	expirePfx   = "e:" // key -> expireAt||valueType, fast point lookup of a key's TTL
	ttlIndexPfx = "t:" // expireAt||key -> valueType, ordered scan for the index manager
)

// BadgerStore is a Store backed by a single embedded github.com/dgraph-io/badger/v4
// database. Each shard owns one BadgerStore rooted at its own directory.
type BadgerStore struct {
	dir string
	db  *badger.DB

	mode   atomic.Int32
	paused atomic.Bool
}

// OpenBadgerStore opens (creating if absent) a badger database at dir, with a
// block cache sized from rocksBlockcacheMB (kept under the original knob name;
// it now sizes badger.Options.BlockCacheSize instead of a RocksDB block cache).
// The cache is not shared: every call gets its own cache of that full size.
func OpenBadgerStore(dir string, rocksBlockcacheMB int) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir).
		WithBlockCacheSize(int64(rocksBlockcacheMB) * 1024 * 1024).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	s := &BadgerStore{dir: dir, db: db}
	s.mode.Store(int32(ReadWrite))
	return s, nil
}

func (s *BadgerStore) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataPrefix + key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrKeyNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Put(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(dataPrefix+key), value)
	})
}

func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(dataPrefix + key)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return deleteTTLEntryLocked(txn, key)
	})
}

func (s *BadgerStore) Iterate(fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(dataPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key()[len(dataPrefix):])
			if err := it.Item().Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Stats() StoreStats {
	var stats StoreStats
	_ = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(dataPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			stats.Keys++
			stats.Bytes += int(it.Item().ValueSize())
		}
		return nil
	})
	return stats
}

func (s *BadgerStore) SetExpire(key string, valueType string, expireAt int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := deleteTTLEntryLocked(txn, key); err != nil {
			return err
		}
		if expireAt <= 0 {
			return nil
		}
		if err := txn.Set([]byte(expirePfx+key), encodeExpireVal(expireAt, valueType)); err != nil {
			return err
		}
		return txn.Set(append([]byte(ttlIndexPfx), ttlIndexKey(expireAt, key)...), []byte(valueType))
	})
}

func (s *BadgerStore) ExpireAt(key string) (int64, bool) {
	var expireAt int64
	var found bool
	_ = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(expirePfx + key))
		if err != nil {
			return nil
		}
		return item.Value(func(val []byte) error {
			expireAt, _ = decodeExpireVal(val)
			found = true
			return nil
		})
	})
	return expireAt, found
}

// ExpireKeyIfNeeded re-checks a key's TTL under a write transaction and
// deletes it if still expired. The re-check matters: the key may have been
// refreshed or overwritten between the time the index manager's scanner
// observed it and the deleter's turn to act on it.
func (s *BadgerStore) ExpireKeyIfNeeded(key string, now int64) (bool, error) {
	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(expirePfx + key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		var expireAt int64
		if err := item.Value(func(val []byte) error {
			expireAt, _ = decodeExpireVal(val)
			return nil
		}); err != nil {
			return err
		}
		if expireAt > now {
			return nil
		}
		if err := txn.Delete([]byte(dataPrefix + key)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err := deleteTTLEntryLocked(txn, key); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// deleteTTLEntryLocked removes any existing TTL index entry for key. It must
// run inside the same transaction as the caller's other writes so a crash
// never leaves the point index and the scan index disagreeing.
func deleteTTLEntryLocked(txn *badger.Txn, key string) error {
	item, err := txn.Get([]byte(expirePfx + key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}
	var expireAt int64
	if err := item.Value(func(val []byte) error {
		expireAt, _ = decodeExpireVal(val)
		return nil
	}); err != nil {
		return err
	}
	if err := txn.Delete([]byte(expirePfx + key)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	idxKey := append([]byte(ttlIndexPfx), ttlIndexKey(expireAt, key)...)
	if err := txn.Delete(idxKey); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return nil
}

func (s *BadgerStore) ScanExpired(cursor []byte, now int64, limit int) ([]TTLEntry, []byte, error) {
	var entries []TTLEntry
	var next []byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(ttlIndexPfx)})
		defer it.Close()

		start := append([]byte(ttlIndexPfx), cursor...)
		if len(cursor) == 0 {
			it.Rewind()
		} else {
			it.Seek(start)
			if it.Valid() && string(it.Item().Key()) == string(start) {
				it.Next() // resume semantics: skip the exact entry observed last time
			}
		}
		for ; it.Valid(); it.Next() {
			raw := it.Item().Key()[len(ttlIndexPfx):]
			expireAt, key := decodeTTLIndexKey(raw)
			if expireAt > now {
				break
			}
			var valueType string
			if err := it.Item().Value(func(val []byte) error {
				valueType = string(val)
				return nil
			}); err != nil {
				return err
			}
			entries = append(entries, TTLEntry{PrimaryKey: key, ValueType: valueType, ExpireAt: expireAt})
			next = append([]byte(nil), raw...)
			if len(entries) >= limit {
				break
			}
		}
		return nil
	})
	return entries, next, err
}

func (s *BadgerStore) CurrentTime() int64 {
	return time.Now().Unix()
}

func (s *BadgerStore) Mode() Mode    { return Mode(s.mode.Load()) }
func (s *BadgerStore) SetMode(m Mode) { s.mode.Store(int32(m)) }

func (s *BadgerStore) Pause()        { s.paused.Store(true) }
func (s *BadgerStore) Resume()       { s.paused.Store(false) }
func (s *BadgerStore) Paused() bool  { return s.paused.Load() }

func (s *BadgerStore) Empty() bool {
	empty := true
	_ = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(dataPrefix)})
		defer it.Close()
		it.Rewind()
		empty = !it.Valid()
		return nil
	})
	return empty
}

// Destroy closes the database and removes its on-disk directory. Irreversible.
func (s *BadgerStore) Destroy() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(s.dir)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func encodeExpireVal(expireAt int64, valueType string) []byte {
	buf := make([]byte, 8+len(valueType))
	binary.BigEndian.PutUint64(buf[:8], uint64(expireAt))
	copy(buf[8:], valueType)
	return buf
}

func decodeExpireVal(val []byte) (int64, string) {
	return int64(binary.BigEndian.Uint64(val[:8])), string(val[8:])
}
