package ttlindex

import (
	"testing"
	"time"

	"github.com/dreamware/redisd/internal/command"
	"github.com/dreamware/redisd/internal/segment"
	"github.com/dreamware/redisd/internal/storage"
)

func newTestManager(t *testing.T, store *storage.MemoryStore) (*Manager, *command.Context) {
	t.Helper()
	seg := segment.New(1, 128)
	stores := []storage.Store{store}
	cmdCtx := &command.Context{Segment: seg, Stores: stores}
	cfg := Config{ScanBatch: 10, DelBatch: 10, ScanPoolLen: 1, DelPoolLen: 1, PauseTime: time.Hour}
	return New(cfg, seg, stores, cmdCtx, false), cmdCtx
}

func TestScanThenDeleteRemovesExpiredKey(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put("k1", []byte("v1"))
	_ = store.SetExpire("k1", "string", 100)

	mgr, _ := newTestManager(t, store)

	mgr.scanExpiredKeysJob(0)
	if n := mgr.tryDelExpiredKeysJob(0); n != 1 {
		t.Fatalf("expected 1 deletion, got %d", n)
	}

	if _, err := store.Get("k1"); err != storage.ErrKeyNotFound {
		t.Errorf("expected key deleted, got %v", err)
	}
}

func TestScanSkipsNotYetExpiredKeys(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SetNowForTest(50)
	_ = store.Put("k1", []byte("v1"))
	_ = store.SetExpire("k1", "string", 1000)

	mgr, _ := newTestManager(t, store)
	mgr.scanExpiredKeysJob(0)

	if n := mgr.tryDelExpiredKeysJob(0); n != 0 {
		t.Errorf("expected no deletions for a key not yet expired, got %d", n)
	}
}

func TestConcurrentScanIsSerializedByLatch(t *testing.T) {
	store := storage.NewMemoryStore()
	mgr, _ := newTestManager(t, store)

	shard := mgr.shards[0]
	shard.scanJobStatus.Store(true) // simulate a scan already in flight

	mgr.scanExpiredKeysJob(0) // must return immediately, not block

	shard.scanJobStatus.Store(false)
}

func TestStopStoreClearsQueueAndFreezesScheduling(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put("k1", []byte("v1"))
	_ = store.SetExpire("k1", "string", 100)

	mgr, _ := newTestManager(t, store)
	mgr.scanExpiredKeysJob(0)

	mgr.StopStore(0)

	if n := mgr.tryDelExpiredKeysJob(0); n != 0 {
		t.Errorf("expected StopStore to prevent further deletes, got %d", n)
	}
	if len(mgr.shards[0].expiredKeys) != 0 {
		t.Errorf("expected queue cleared by StopStore")
	}
}

func TestStartTickAndShutdown(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Put("k1", []byte("v1"))
	_ = store.SetExpire("k1", "string", 100)

	mgr, _ := newTestManager(t, store)
	mgr.cfg.PauseTime = 10 * time.Millisecond

	mgr.Start()
	time.Sleep(50 * time.Millisecond)
	mgr.Shutdown()

	if _, err := store.Get("k1"); err != storage.ErrKeyNotFound {
		t.Errorf("expected expired key swept by the running manager, got %v", err)
	}
}
