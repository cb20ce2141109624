package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/redisd/internal/config"
	"github.com/dreamware/redisd/internal/storage"
)

func testConfig(kvStoreCount int) *config.Config {
	cfg := config.Default()
	cfg.Engine = "memory"
	cfg.BindIP = "127.0.0.1"
	cfg.Port = 0 // ephemeral, avoids collisions between parallel tests
	cfg.MetricsAddr = ""
	cfg.KVStoreCount = kvStoreCount
	cfg.PauseTimeIndexMgr = 1
	return cfg
}

// §8 scenario 1: cold boot, N shards.
func TestStartupColdBootOpensAllShards(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(4)))
	defer srv.Shutdown()

	require.Equal(t, 4, srv.GetKVStoreCount())
	for i := 0; i < 4; i++ {
		require.Equal(t, storage.ReadWrite, srv.kvstores[i].Mode(), "shard %d", i)
	}
	require.True(t, srv.Running())
}

// §8 boundary: kvStoreCount=1 must still start and serve.
func TestStartupSingleShard(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(1)))
	defer srv.Shutdown()

	require.Equal(t, 1, srv.GetKVStoreCount())
}

// §8 scenario 2 (adapted to a single long-lived process, since the memory
// engine has no cross-restart persistence to warm-boot from): once a shard
// is destroyed, the catalog and the live store agree it's StoreNone, and it
// stays that way.
func TestDestroyStoreMarksShardNone(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(4)))
	defer srv.Shutdown()

	srv.kvstores[2].Pause()
	require.NoError(t, srv.DestroyStore(2, false))

	require.Equal(t, storage.StoreNone, srv.kvstores[2].Mode())
	catMode, err := srv.cat.LoadMode(2)
	require.NoError(t, err)
	require.Equal(t, storage.StoreNone, catMode)
}

func TestDestroyStoreRequiresPaused(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(1)))
	defer srv.Shutdown()

	require.Error(t, srv.DestroyStore(0, true))
}

func TestDestroyStoreRequiresEmptyUnlessForced(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(1)))
	defer srv.Shutdown()

	require.NoError(t, srv.kvstores[0].Put("k", []byte("v")))
	srv.kvstores[0].Pause()

	require.Error(t, srv.DestroyStore(0, false))
	require.NoError(t, srv.DestroyStore(0, true))
}

// §8 round-trip: set_store_mode(s, m); set_store_mode(s, m) performs
// exactly one effective change — the second call is a no-op.
func TestSetStoreModeNoopWhenUnchanged(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(1)))
	defer srv.Shutdown()

	require.NoError(t, srv.SetStoreMode(0, storage.ReplicateOnly))
	require.NoError(t, srv.SetStoreMode(0, storage.ReplicateOnly))
	require.Equal(t, storage.ReplicateOnly, srv.kvstores[0].Mode())
}

// §8: stop() called twice performs the work once.
func TestShutdownIsIdempotent(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(2)))

	require.NoError(t, srv.Shutdown())
	require.NoError(t, srv.Shutdown())
	require.False(t, srv.Running())
	require.True(t, srv.Stopped())
}

// §8: after stop() returns, running=false and stopped=true; the monitor
// goroutine has joined (observable here as WaitStopComplete returning
// promptly instead of blocking on its 1s poll).
func TestWaitStopCompleteReturnsAfterShutdown(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(2)))
	require.NoError(t, srv.Shutdown())

	done := make(chan struct{})
	go func() {
		srv.WaitStopComplete()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitStopComplete did not return promptly after Shutdown")
	}
}

// §8 scenario 6 (reject-while-stopping): after running=false,
// CancelSession returns an error and ProcessRequest reports not-ready
// instead of panicking on the unknown connection id.
func TestRejectsWorkWhileStopped(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(1)))
	require.NoError(t, srv.Shutdown())

	require.Error(t, srv.CancelSession(999))

	ready, err := srv.ProcessRequest(999)
	require.NoError(t, err)
	require.False(t, ready)
}

// §8: WaitStopComplete, observing shutdownRequested mid-wait, must call
// Shutdown itself and return once it completes.
func TestRequestShutdownDrivesWaitStopComplete(t *testing.T) {
	srv := New()
	require.NoError(t, srv.Startup(testConfig(1)))

	done := make(chan struct{})
	go func() {
		srv.WaitStopComplete()
		close(done)
	}()

	srv.RequestShutdown()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("WaitStopComplete did not observe shutdownRequested and stop")
	}
	require.True(t, srv.Stopped())
}
