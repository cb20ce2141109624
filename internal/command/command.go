// Package command implements the command table dispatched by
// ProcessRequest (§4.2): Precheck extracts a command name, RunSessionCmd
// looks up and runs its handler. Concrete command bodies cover the
// GET/SET/DEL/EXPIRE/TTL/PING/CONFIG/SHUTDOWN set named in §6; replication
// takeover commands (FULLSYNC/INCRSYNC) are intercepted before reaching
// this table, per §4.2 steps 4-5.
package command

import (
	"strings"

	"github.com/dreamware/redisd/internal/apperr"
	"github.com/dreamware/redisd/internal/config"
	"github.com/dreamware/redisd/internal/pessimistic"
	"github.com/dreamware/redisd/internal/replication"
	"github.com/dreamware/redisd/internal/segment"
	"github.com/dreamware/redisd/internal/session"
	"github.com/dreamware/redisd/internal/storage"
)

// Handler runs one command against the session that issued it, writing its
// reply directly to sess.Conn (mirroring how redcon-fronted commands work
// in the corpus's bitcask servers) and returning only an error. A non-nil
// error means no reply has been written yet; the caller writes it as
// `-ERR <text>` via redcon.Conn.WriteError.
type Handler func(c *Context, sess *session.Session, args [][]byte) error

// Context bundles the dependencies command handlers need.
type Context struct {
	Segment *segment.Manager
	Stores  []storage.Store
	Config  *config.Config

	// Repl propagates successful writes to a shard's INCRSYNC subscribers,
	// per §6 FULLSYNC/INCRSYNC and §4.2's replication handshake design.
	// May be nil in tests that don't exercise replication.
	Repl *replication.Manager

	// Pessimistic serializes same-key read-modify-write sequences (e.g.
	// EXPIRE's get-then-conditionally-set) that the shard-wide LockIX/
	// LockIS pair alone doesn't cover: two LockIX holders on the same
	// shard but different keys are compatible with each other per §5, so
	// two concurrent EXPIRE calls on the *same* key still need a finer
	// per-key lock underneath. May be nil in tests that don't exercise it.
	Pessimistic *pessimistic.Manager

	// AuthStrings/SetRequirepass/SetMasterauth back CONFIG GET/SET
	// requirepass|masterauth. They read and swap the server's live
	// atomic.Pointer[string] fields (§3: auth strings "may be swapped
	// atomically by a CONFIG-style command"), not the immutable Config
	// snapshot above — set by the server entry to its own Auth/
	// SetRequirepass/SetMasterauth methods, the same hand-down-a-callback
	// shape Shutdown below already uses to avoid a back-import of
	// internal/server. May be nil in tests that don't exercise CONFIG.
	AuthStrings    func() (requirepass, masterauth string)
	SetRequirepass func(string)
	SetMasterauth  func(string)

	// Shutdown is invoked by the SHUTDOWN command; set by the server
	// entry to a callback that records the shutdown request (its
	// RequestShutdown method) rather than stopping the server inline.
	// A command package has no
	// business importing internal/server (that would cycle back here),
	// so the server hands down this one callback instead.
	Shutdown func() error
}

// Table is a registered set of command handlers keyed by lowercase name.
type Table struct {
	handlers map[string]Handler
}

// NewTable builds the standard command table.
func NewTable() *Table {
	t := &Table{handlers: make(map[string]Handler)}
	t.handlers["ping"] = cmdPing
	t.handlers["get"] = cmdGet
	t.handlers["set"] = cmdSet
	t.handlers["del"] = cmdDel
	t.handlers["expire"] = cmdExpire
	t.handlers["ttl"] = cmdTTL
	t.handlers["config"] = cmdConfig
	t.handlers["shutdown"] = cmdShutdown
	return t
}

// Precheck extracts and lowercases the command name from the session's
// current arguments. An empty command is a parse error.
func Precheck(sess *session.Session) (string, error) {
	if len(sess.Args) == 0 {
		return "", apperr.ErrParse
	}
	return strings.ToLower(string(sess.Args[0])), nil
}

// RunSessionCmd looks up cmdName in the table and runs it. An unknown
// command name is a parse error, matching the wire contract that every
// failure mode short of a successful dispatch reports back as ErrParse,
// ErrAuth, or ErrInternal (§7).
func (t *Table) RunSessionCmd(c *Context, sess *session.Session, cmdName string) error {
	h, ok := t.handlers[cmdName]
	if !ok {
		return apperr.ErrParse
	}
	return h(c, sess, sess.Args)
}

// withShard resolves key's shard, acquires the shard lock in mode for the
// duration of fn, and refuses dispatch to a destroyed shard.
func (c *Context) withShard(key string, mode segment.LockMode, fn func(store storage.Store) error) error {
	shardID := c.Segment.ShardForKey(key)
	c.Segment.Lock(shardID, mode)
	defer c.Segment.Unlock(shardID, mode)

	store := c.Stores[shardID]
	if store.Mode() == storage.StoreNone {
		// §8 scenario 2 ("warm boot after destroy"): a destroyed shard
		// still occupies its slot in the table, so requests routed to it
		// are a server-internal state problem, not a missing key.
		return apperr.ErrInternal
	}
	return fn(store)
}

// ExpireKeyIfNeeded conditionally deletes key on shardID if its TTL has
// passed as of now, re-checking under the shard's own write lock. Called
// by the index manager's deleter pool (§4.4).
func (c *Context) ExpireKeyIfNeeded(shardID int, key string, now int64) (bool, error) {
	c.Segment.Lock(shardID, segment.LockIX)
	defer c.Segment.Unlock(shardID, segment.LockIX)
	return c.Stores[shardID].ExpireKeyIfNeeded(key, now)
}
