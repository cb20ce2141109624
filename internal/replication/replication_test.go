package replication

import (
	"testing"

	"github.com/dreamware/redisd/internal/storage"
)

func TestSupplyFullSyncRejectsUnknownStore(t *testing.T) {
	m := New([]storage.Store{storage.NewMemoryStore()})

	if err := m.SupplyFullSync(nil, 5); err == nil {
		t.Errorf("expected error for out-of-range store id")
	}
}

func TestRegisterIncrSyncRejectsUnknownStore(t *testing.T) {
	m := New([]storage.Store{storage.NewMemoryStore()})

	if err := m.RegisterIncrSync(nil, -1, 0, 0); err == nil {
		t.Errorf("expected error for out-of-range store id")
	}
}

func TestStopStoreIsIdempotentWithNoSubscribers(t *testing.T) {
	m := New([]storage.Store{storage.NewMemoryStore()})

	m.StopStore(0) // must not panic with an empty subscriber list
	m.Shutdown()
}
