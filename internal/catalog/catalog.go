// Package catalog persists per-shard administrative metadata — currently
// just each shard's Mode — on a dedicated store, separate from the shards
// themselves, the way the original's rocks-engine catalog separates shard
// bookkeeping from shard data.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/dreamware/redisd/internal/storage"
)

const mainMetaKeyPrefix = "store_main_meta/"

// mainMeta is the JSON-encoded value behind each store_main_meta/<i> key.
type mainMeta struct {
	Mode storage.Mode `json:"storeMode"`
}

// Catalog owns a dedicated Store (conventionally named "CATALOG") and
// records the administrative Mode of every shard in the server.
type Catalog struct {
	store storage.Store
}

// New wraps store as a Catalog. The caller is responsible for opening store
// (e.g. at "<dataDir>/CATALOG").
func New(store storage.Store) *Catalog {
	return &Catalog{store: store}
}

func metaKey(shardID int) string {
	return fmt.Sprintf("%s%d", mainMetaKeyPrefix, shardID)
}

// LoadMode reads shardID's persisted mode. A missing entry means the shard
// has never been recorded and defaults to storage.ReadWrite, the state a
// freshly created shard starts in.
func (c *Catalog) LoadMode(shardID int) (storage.Mode, error) {
	raw, err := c.store.Get(metaKey(shardID))
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return storage.ReadWrite, nil
		}
		return storage.ReadWrite, err
	}
	var meta mainMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return storage.ReadWrite, err
	}
	return meta.Mode, nil
}

// SaveMode persists shardID's mode. Startup, SetStoreMode and DestroyStore
// call this; a failure here during startup is treated as fatal by the server entry,
// since the invariant that the catalog and the live shard table agree must
// never be violated.
func (c *Catalog) SaveMode(shardID int, mode storage.Mode) error {
	raw, err := json.Marshal(mainMeta{Mode: mode})
	if err != nil {
		return err
	}
	return c.store.Put(metaKey(shardID), raw)
}

// Close releases the catalog's underlying store.
func (c *Catalog) Close() error {
	return c.store.Close()
}
