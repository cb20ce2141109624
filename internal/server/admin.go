package server

import (
	"fmt"

	"github.com/dreamware/redisd/internal/segment"
	"github.com/dreamware/redisd/internal/storage"
)

// DestroyStore implements §4.3: it takes the shard's exclusive lock,
// verifies the shard is paused (and, unless force, empty), records
// StoreNone in the catalog *before* destroying the on-disk state — so a
// crash mid-Destroy never re-exposes a partially destroyed shard on
// restart — then tells replication and the index manager to stop their
// per-shard workers for it.
func (s *Server) DestroyStore(storeID int, force bool) error {
	if storeID < 0 || storeID >= len(s.kvstores) {
		return fmt.Errorf("server: unknown store id %d", storeID)
	}
	s.segmentMgr.Lock(storeID, segment.LockX)
	defer s.segmentMgr.Unlock(storeID, segment.LockX)

	store := s.kvstores[storeID]
	if !store.Paused() {
		return fmt.Errorf("server: store %d must be paused before destroy", storeID)
	}
	if !force && !store.Empty() {
		return fmt.Errorf("server: store %d is not empty", storeID)
	}

	if err := s.cat.SaveMode(storeID, storage.StoreNone); err != nil {
		return fmt.Errorf("server: record store %d as destroyed: %w", storeID, err)
	}
	store.SetMode(storage.StoreNone)

	if err := store.Destroy(); err != nil {
		return fmt.Errorf("server: destroy store %d: %w", storeID, err)
	}

	// DestroyStore does not propagate to replicas; see original's TODO(vinchen).
	s.replMgr.StopStore(storeID)
	s.indexMgr.StopStore(storeID)
	s.pessimisticMgr.ForgetShard(storeID)
	return nil
}

// SetStoreMode implements §4.3: a no-op if the mode is already current,
// otherwise it updates the store and mirrors the change into the catalog.
// The caller must already hold storeID's LockX.
func (s *Server) SetStoreMode(storeID int, mode storage.Mode) error {
	if storeID < 0 || storeID >= len(s.kvstores) {
		return fmt.Errorf("server: unknown store id %d", storeID)
	}
	store := s.kvstores[storeID]
	if store.Mode() == mode {
		return nil
	}
	store.SetMode(mode)
	return s.cat.SaveMode(storeID, mode)
}
