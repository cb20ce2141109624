// Package session models one client connection and the registry that maps
// connection ids to sessions, per §3 "Session" and §4.2 "Session Registry &
// Dispatch".
package session

import (
	"context"
	"sync/atomic"

	"github.com/tidwall/redcon"
)

// Session represents one client connection: its id, the current command's
// arguments, auth/db context, and the transport. The transport starts
// Owned; a replication handshake (FULLSYNC/INCRSYNC) detaches it via
// redcon's own Conn.Detach(), the direct analogue of the original's
// borrowConn() transport steal — once detached, redcon's own event loop
// stops driving reads for that connection, so there is no separate
// Owned/Detached enum to maintain here.
type Session struct {
	ID   uint64
	Conn redcon.Conn

	// Args holds the current command's arguments, set by the network
	// layer before ProcessRequest is invoked and read by Precheck/
	// RunSessionCmd.
	Args [][]byte

	DBID          int
	Authenticated bool

	cancelled atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a Session wrapping conn. id must be unique for the lifetime
// of the registry it will be added to.
func New(id uint64, conn redcon.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{ID: id, Conn: conn, ctx: ctx, cancel: cancel}
}

// Context is cancelled when Cancel is called, so a long-running command can
// check ctx.Err() at its next quiescent point and abandon its response.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Cancel asks the session to stop as soon as its current operation yields.
func (s *Session) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.cancel()
	}
}

// Cancelled reports whether Cancel has been called.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}
