// Package server is the core of the exercise: the server entry that
// assembles every subsystem in dependency order (§4.1 Startup), holds
// their shared state, and tears them down in reverse order with strict
// quiescence guarantees (§4.1 Shutdown). It is the single process-wide
// object described in §3 "Server state."
//
// Subsystems hold a plain back-pointer to *Server, never ownership of it
// (§9): the server exclusively owns catalog, segmentMgr, pessimisticMgr,
// network, executor, replMgr and indexMgr, and stops them on Shutdown in
// the fixed order documented there (network, executor, replication, index
// manager). There is no shared_ptr cycle to break in
// Go, so unlike the original's reset()-during-stop dance, teardown here is
// just "stop everything, then let the zero values fall out of scope" — the
// nil-out in Shutdown exists only so a subsystem method called after a
// non-SHUTDOWN-command stop panics loudly instead of silently succeeding.
package server

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamware/redisd/internal/catalog"
	"github.com/dreamware/redisd/internal/command"
	"github.com/dreamware/redisd/internal/config"
	"github.com/dreamware/redisd/internal/matrix"
	"github.com/dreamware/redisd/internal/network"
	"github.com/dreamware/redisd/internal/pessimistic"
	"github.com/dreamware/redisd/internal/pool"
	"github.com/dreamware/redisd/internal/replication"
	"github.com/dreamware/redisd/internal/segment"
	"github.com/dreamware/redisd/internal/session"
	"github.com/dreamware/redisd/internal/storage"
	"github.com/dreamware/redisd/internal/ttlindex"
)

// Server is the process-wide lifecycle owner described in §3.
type Server struct {
	cfg *config.Config

	lifecycleMu sync.Mutex
	eventCond   *sync.Cond

	running           atomic.Bool
	stopped           atomic.Bool
	shutdownRequested atomic.Bool

	startupTimeNs int64

	requirepass atomic.Pointer[string]
	masterauth  atomic.Pointer[string]

	sessions *session.Registry

	kvstores []storage.Store
	cat      *catalog.Catalog

	segmentMgr     *segment.Manager
	pessimisticMgr *pessimistic.Manager
	net            *network.Server
	executor       *pool.Pool
	replMgr        *replication.Manager
	indexMgr       *ttlindex.Manager

	cmdTable *command.Table
	cmdCtx   *command.Context

	netMatrix  *matrix.Network
	reqMatrix  *matrix.Request
	poolMatrix *matrix.Pool

	netGauges  *matrix.PromGauges
	reqGauges  *matrix.PromGauges
	poolGauges *matrix.PromGauges

	monitorDone chan struct{}
}

// New allocates an unstarted Server. Call Startup to bring it up.
func New() *Server {
	s := &Server{
		sessions:   session.NewRegistry(),
		netMatrix:  &matrix.Network{},
		reqMatrix:  &matrix.Request{},
		poolMatrix: &matrix.Pool{},
	}
	s.eventCond = sync.NewCond(&s.lifecycleMu)
	return s
}

// Startup executes §4.1's ten steps in order, with one exception: the
// replication manager (step 7) is constructed before the network handle
// (step 6); both exist before the listener starts accepting in step 9.
// On failure at step k, it
// closes whatever was opened in steps 1..k-1 (idiomatic Go has no implicit
// destructor) and returns the error; the caller must not treat a failed
// Startup as needing a separate Shutdown call, since Startup already
// unwound itself.
func (s *Server) Startup(cfg *config.Config) (err error) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.cfg = cfg
	req := cfg.Requirepass
	auth := cfg.Masterauth
	s.requirepass.Store(&req)
	s.masterauth.Store(&auth)

	var closers []func() error
	rollback := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	defer func() {
		if err != nil {
			rollback()
		}
	}()

	// Step 1: catalog atop a dedicated store named CATALOG.
	catStore, err := openStore(cfg, filepath.Join(cfg.DataDir, "CATALOG"))
	if err != nil {
		return fmt.Errorf("server: open catalog store: %w", err)
	}
	closers = append(closers, catStore.Close)
	s.cat = catalog.New(catStore)

	// Step 2: per-shard main-meta + N store handles.
	n := cfg.KVStoreCount
	stores := make([]storage.Store, n)
	for i := 0; i < n; i++ {
		store, err := openStore(cfg, filepath.Join(cfg.DataDir, fmt.Sprintf("shard_%d", i)))
		if err != nil {
			return fmt.Errorf("server: open shard %d: %w", i, err)
		}
		idx := i
		closers = append(closers, store.Close)
		mode, err := s.cat.LoadMode(idx)
		if err != nil {
			return fmt.Errorf("server: load shard %d mode: %w", i, err)
		}
		// Create the shard's main-meta entry if it was missing (rewriting
		// an existing one unchanged); a failed catalog write is fatal.
		if err := s.cat.SaveMode(idx, mode); err != nil {
			panic(fmt.Sprintf("server: record shard %d mode in catalog: %v", i, err))
		}
		store.SetMode(mode)
		stores[i] = store
	}
	s.kvstores = stores

	// Step 3: segment manager.
	s.segmentMgr = segment.New(n, cfg.ChunkSize)

	// Step 4: pessimistic manager.
	s.pessimisticMgr = pessimistic.New(n)

	// Step 5: request executor pool, sized max(4, NumCPU/2) per §4.1 step 5.
	workers := executorDefaultSize()
	s.executor = pool.New(workers, workers*64, s.poolMatrix)
	s.executor.Start()
	closers = append(closers, func() error { s.executor.Stop(); return nil })

	// Step 7, ahead of step 6: replication manager (constructed before the
	// network handle and before it listens, since replicas are outgoing
	// clients of this process, not the other way around).
	s.replMgr = replication.New(s.kvstores)
	closers = append(closers, func() error { s.replMgr.Shutdown(); return nil })

	s.netGauges = matrix.NewPromGauges("network", "sticky_packets", "conn_created", "conn_released", "invalid_packets")
	s.reqGauges = matrix.NewPromGauges("request", "processed", "process_cost", "send_packet_cost")
	s.poolGauges = matrix.NewPromGauges("pool", "in_queue", "executed", "queue_time", "execute_time")

	s.cmdTable = command.NewTable()
	s.cmdCtx = &command.Context{
		Segment:     s.segmentMgr,
		Stores:      s.kvstores,
		Config:      s.cfg,
		Repl:        s.replMgr,
		Pessimistic: s.pessimisticMgr,
		// CONFIG GET/SET read and swap the server's live atomic auth
		// strings rather than the immutable config snapshot, per §3's
		// "may be swapped atomically by a CONFIG-style command."
		AuthStrings:    s.Auth,
		SetRequirepass: s.SetRequirepass,
		SetMasterauth:  s.SetMasterauth,
		// The SHUTDOWN command only records the request; WaitStopComplete
		// (driven by cmd/redisd's main loop) is what actually calls
		// Shutdown, per §4.1's "releases the mutex and calls stop() itself."
		Shutdown: func() error { s.RequestShutdown(); return nil },
	}

	// Step 6: network, prepared but not yet accepting.
	s.net = network.New(
		fmt.Sprintf("%s:%d", cfg.BindIP, cfg.Port),
		cfg.MetricsAddr,
		s.sessions,
		s,
		s,
	)
	s.net.OnConnCreated = func() { s.netMatrix.ConnCreated.Add(1) }
	s.net.OnConnReleased = func() { s.netMatrix.ConnReleased.Add(1) }
	s.net.OnInvalidPacket = func() { s.netMatrix.InvalidPackets.Add(1) }
	s.net.OnStickyPacket = func() { s.netMatrix.StickyPackets.Add(1) }

	// Step 8: index manager.
	s.indexMgr = ttlindex.New(ttlindex.Config{
		ScanBatch:   cfg.ScanCntIndexMgr,
		DelBatch:    cfg.DelCntIndexMgr,
		ScanPoolLen: cfg.ScanJobCntIndexMgr,
		DelPoolLen:  cfg.DelJobCntIndexMgr,
		PauseTime:   time.Duration(cfg.PauseTimeIndexMgr) * time.Second,
	}, s.segmentMgr, s.kvstores, s.cmdCtx, cfg.ClusterEnabled)
	s.indexMgr.Start()
	closers = append(closers, func() error { s.indexMgr.Shutdown(); return nil })

	// Step 9: start accepting.
	errCh := make(chan error, 1)
	go func() {
		if lerr := s.net.ListenAndServe(); lerr != nil {
			errCh <- lerr
		}
	}()
	select {
	case lerr := <-errCh:
		return fmt.Errorf("server: listen: %w", lerr)
	case <-time.After(50 * time.Millisecond):
		// No immediate bind failure; assume the listener is up. redcon
		// has no synchronous "bound" signal, so this is a best-effort
		// grace period the way the original's own accept-thread startup
		// is fire-and-forget too.
	}
	closers = append(closers, s.net.Stop)

	// Step 10.
	s.sessions.SetRunning(true)
	s.running.Store(true)
	s.stopped.Store(false)
	s.startupTimeNs = time.Now().UnixNano()
	s.monitorDone = make(chan struct{})
	go s.monitor()

	return nil
}

// openStore opens one shard (or the catalog) according to cfg.Engine.
func openStore(cfg *config.Config, dir string) (storage.Store, error) {
	if cfg.Engine == "memory" {
		return storage.NewMemoryStore(), nil
	}
	return storage.OpenBadgerStore(dir, cfg.RocksBlockcacheMB)
}

func executorDefaultSize() int {
	n := runtime.NumCPU() / 2
	if n < 4 {
		return 4
	}
	return n
}

// Running reports whether the server is currently accepting work.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Stopped reports whether Shutdown has fully completed.
func (s *Server) Stopped() bool {
	return s.stopped.Load()
}

// RequestShutdown records that a client issued SHUTDOWN, for
// WaitStopComplete to notice and act on.
func (s *Server) RequestShutdown() {
	s.shutdownRequested.Store(true)
	s.lifecycleMu.Lock()
	s.eventCond.Broadcast()
	s.lifecycleMu.Unlock()
}

// Shutdown is §4.1's Shutdown(): idempotent, and ordered network →
// executor → replication → index manager → session registry, then
// catalog and every shard, then the monitor goroutine joins last.
//
// clientTriggered distinguishes a client SHUTDOWN command (which leaves
// the subsystem handles in place so in-flight callbacks from them don't
// panic while they finish) from every other stop path (process signal,
// Startup failure unwind via a fresh Server, admin call), which additionally
// nils the subsystem handles per §4.1.
func (s *Server) Shutdown() error {
	return s.shutdown(true)
}

// ShutdownForSignal is the non-client-triggered stop path (SIGTERM/SIGINT),
// named separately from Shutdown so cmd/redisd's signal handler doesn't
// have to fake a client-triggered call.
func (s *Server) ShutdownForSignal() error {
	return s.shutdown(false)
}

func (s *Server) shutdown(clientTriggered bool) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // idempotent: already stopping or stopped
	}
	s.lifecycleMu.Lock()
	s.eventCond.Broadcast()
	s.lifecycleMu.Unlock()

	s.sessions.SetRunning(false)

	if s.net != nil {
		_ = s.net.Stop()
	}
	if s.executor != nil {
		s.executor.Stop()
	}
	if s.replMgr != nil {
		s.replMgr.Shutdown()
	}
	if s.indexMgr != nil {
		s.indexMgr.Shutdown()
	}
	s.sessions.Clear()

	if !clientTriggered {
		s.net = nil
		s.executor = nil
		s.replMgr = nil
		s.indexMgr = nil
	}

	if s.cat != nil {
		_ = s.cat.Close()
	}
	for _, st := range s.kvstores {
		_ = st.Close()
	}

	if s.monitorDone != nil {
		<-s.monitorDone
	}

	s.stopped.Store(true)
	s.lifecycleMu.Lock()
	s.eventCond.Broadcast()
	s.lifecycleMu.Unlock()
	return nil
}

// WaitStopComplete polls eventCond with a 1s timeout until
// running=false && stopped=true. If it observes shutdownRequested=true
// mid-wait, it releases the mutex and calls Shutdown itself — the mutex
// must not be held across Shutdown, since Shutdown reacquires it
// transitively through Broadcast calls.
func (s *Server) WaitStopComplete() {
	for {
		s.lifecycleMu.Lock()
		if !s.running.Load() && s.stopped.Load() {
			s.lifecycleMu.Unlock()
			return
		}
		if s.shutdownRequested.Load() {
			s.lifecycleMu.Unlock()
			_ = s.Shutdown()
			continue
		}
		waitWithTimeout(s.eventCond, time.Second)
		s.lifecycleMu.Unlock()
	}
}

// waitWithTimeout mimics a condition variable wait with a bounded timeout:
// sync.Cond has no native timed wait, so a helper goroutine broadcasts
// after the deadline, matching §4.1's "polls eventCond with a 1s timeout."
// Must be called with mu held; returns with mu held, same as cond.Wait().
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}

// GetKVStoreCount returns the fixed shard count, matching §8's
// `get_kv_store_count()=4` boundary scenario.
func (s *Server) GetKVStoreCount() int {
	return len(s.kvstores)
}

// Auth reports the current requirepass/masterauth strings, read via an
// atomic pointer load so CONFIG SET never blocks a concurrent reader.
func (s *Server) Auth() (requirepass, masterauth string) {
	return *s.requirepass.Load(), *s.masterauth.Load()
}

// SetRequirepass atomically swaps the requirepass string, matching §5's
// "password strings are shared as immutable byte sequences; swap is an
// atomic pointer store."
func (s *Server) SetRequirepass(v string) {
	s.requirepass.Store(&v)
}

// SetMasterauth atomically swaps the masterauth string.
func (s *Server) SetMasterauth(v string) {
	s.masterauth.Store(&v)
}
