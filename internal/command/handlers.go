package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/redisd/internal/apperr"
	"github.com/dreamware/redisd/internal/segment"
	"github.com/dreamware/redisd/internal/session"
	"github.com/dreamware/redisd/internal/storage"
)

func cmdPing(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) > 1 {
		sess.Conn.WriteBulk(args[1])
		return nil
	}
	sess.Conn.WriteString("PONG")
	return nil
}

func cmdGet(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) != 2 {
		return apperr.ErrParse
	}
	key := string(args[1])

	var value []byte
	err := c.withShard(key, segment.LockIS, func(store storage.Store) error {
		if _, err := store.ExpireKeyIfNeeded(key, store.CurrentTime()); err != nil {
			return err
		}
		v, err := store.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err == storage.ErrKeyNotFound {
		sess.Conn.WriteNull()
		return nil
	}
	if err != nil {
		return err
	}
	sess.Conn.WriteBulk(value)
	return nil
}

func cmdSet(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) != 3 {
		return apperr.ErrParse
	}
	key := string(args[1])
	value := args[2]

	shardID := c.Segment.ShardForKey(key)
	err := c.withShard(key, segment.LockIX, func(store storage.Store) error {
		if err := store.Put(key, value); err != nil {
			return err
		}
		// Plain SET clears any previous TTL, matching Redis semantics.
		return store.SetExpire(key, "", 0)
	})
	if err != nil {
		return err
	}
	if c.Repl != nil {
		c.Repl.Propagate(shardID, "SET", key, value)
	}
	sess.Conn.WriteString("OK")
	return nil
}

func cmdDel(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) < 2 {
		return apperr.ErrParse
	}
	deleted := 0
	for _, k := range args[1:] {
		key := string(k)
		shardID := c.Segment.ShardForKey(key)
		err := c.withShard(key, segment.LockIX, func(store storage.Store) error {
			if _, err := store.Get(key); err != nil {
				return err
			}
			return store.Delete(key)
		})
		if err == nil {
			deleted++
			if c.Repl != nil {
				c.Repl.Propagate(shardID, "DEL", key, nil)
			}
		} else if err != storage.ErrKeyNotFound {
			return err
		}
	}
	sess.Conn.WriteInt(deleted)
	return nil
}

func cmdExpire(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) != 3 {
		return apperr.ErrParse
	}
	key := string(args[1])
	seconds, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return apperr.ErrParse
	}

	// EXPIRE reads the key, then conditionally writes its TTL: two EXPIRE
	// calls racing on the same key across connections need serializing
	// beyond the shard-wide LockIX, which two different-key IX holders
	// share freely.
	if c.Pessimistic != nil {
		shardID := c.Segment.ShardForKey(key)
		unlock := c.Pessimistic.Lock(shardID, key)
		defer unlock()
	}

	set := false
	err = c.withShard(key, segment.LockIX, func(store storage.Store) error {
		if _, err := store.Get(key); err != nil {
			return err
		}
		expireAt := store.CurrentTime() + seconds
		if err := store.SetExpire(key, "string", expireAt); err != nil {
			return err
		}
		set = true
		return nil
	})
	if err == storage.ErrKeyNotFound {
		sess.Conn.WriteInt(0)
		return nil
	}
	if err != nil {
		return err
	}
	if set {
		sess.Conn.WriteInt(1)
	} else {
		sess.Conn.WriteInt(0)
	}
	return nil
}

func cmdTTL(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) != 2 {
		return apperr.ErrParse
	}
	key := string(args[1])

	var ttl int64
	err := c.withShard(key, segment.LockIS, func(store storage.Store) error {
		if _, err := store.ExpireKeyIfNeeded(key, store.CurrentTime()); err != nil {
			return err
		}
		if _, err := store.Get(key); err != nil {
			return err
		}
		expireAt, ok := store.ExpireAt(key)
		if !ok {
			ttl = -1 // key exists, no TTL
			return nil
		}
		remaining := expireAt - store.CurrentTime()
		if remaining < 0 {
			remaining = 0
		}
		ttl = remaining
		return nil
	})
	if err == storage.ErrKeyNotFound {
		sess.Conn.WriteInt(-2) // key doesn't exist
		return nil
	}
	if err != nil {
		return err
	}
	sess.Conn.WriteInt(int(ttl))
	return nil
}

func cmdConfig(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) < 2 {
		return apperr.ErrParse
	}
	sub := strings.ToLower(string(args[1]))
	switch sub {
	case "get":
		return cmdConfigGet(c, sess, args)
	case "set":
		return cmdConfigSet(c, sess, args)
	default:
		return apperr.ErrParse
	}
}

// cmdConfigGet reads the server's live requirepass/masterauth strings
// (swapped atomically by CONFIG SET, never the static Config snapshot)
// for the two auth knobs, matching §3's "may be swapped atomically by a
// CONFIG-style command."
func cmdConfigGet(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) != 3 {
		return apperr.ErrParse
	}
	requirepass, masterauth := c.Config.Requirepass, c.Config.Masterauth
	if c.AuthStrings != nil {
		requirepass, masterauth = c.AuthStrings()
	}
	var value string
	switch strings.ToLower(string(args[2])) {
	case "requirepass":
		value = requirepass
	case "masterauth":
		value = masterauth
	default:
		sess.Conn.WriteArray(0)
		return nil
	}
	sess.Conn.WriteArray(2)
	sess.Conn.WriteBulk(args[2])
	sess.Conn.WriteBulkString(value)
	return nil
}

// cmdConfigSet atomically swaps requirepass/masterauth, the live
// counterpart CONFIG GET above reads back.
func cmdConfigSet(c *Context, sess *session.Session, args [][]byte) error {
	if len(args) != 4 {
		return apperr.ErrParse
	}
	value := string(args[3])
	switch strings.ToLower(string(args[2])) {
	case "requirepass":
		if c.SetRequirepass != nil {
			c.SetRequirepass(value)
		}
	case "masterauth":
		if c.SetMasterauth != nil {
			c.SetMasterauth(value)
		}
	default:
		return apperr.ErrParse
	}
	sess.Conn.WriteString("OK")
	return nil
}

func cmdShutdown(c *Context, sess *session.Session, args [][]byte) error {
	sess.Conn.WriteString("OK")
	go func() {
		time.Sleep(10 * time.Millisecond) // let the OK reply flush first
		_ = c.Shutdown()
	}()
	return nil
}
