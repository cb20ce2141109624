package server

import (
	"log"
	"strconv"
	"time"

	"github.com/dreamware/redisd/internal/apperr"
	"github.com/dreamware/redisd/internal/command"
	"github.com/dreamware/redisd/internal/session"
	"github.com/tidwall/redcon"
)

// AddSession forwards to the session registry (§4.2); kept on Server so
// callers never need to reach into an internal subsystem directly.
func (s *Server) AddSession(sess *session.Session) {
	s.sessions.AddSession(sess)
}

// CancelSession asks the session with the given id to stop (§4.2).
func (s *Server) CancelSession(id uint64) error {
	return s.sessions.CancelSession(id)
}

// EndSession removes a session from the registry (§4.2).
func (s *Server) EndSession(id uint64) {
	s.sessions.EndSession(id)
}

// ProcessRequest is §4.2's dispatch entry point, invoked by the network
// layer once redcon has parsed one complete command on connID. The bool
// return follows the contract exactly: true means the response is ready
// and the network should flush and re-arm the read loop; false means the
// session's transport has been handed to the replication manager and the
// network must stop reading from it.
func (s *Server) ProcessRequest(connID uint64) (ready bool, err error) {
	start := time.Now()
	var sess *session.Session
	defer func() {
		s.reqMatrix.Processed.Add(1)
		s.reqMatrix.ProcessCost.Add(uint64(time.Since(start).Nanoseconds()))
		// SendPacketCost times the actual write to the wire, separate from
		// ProcessCost's end-to-end figure above: a reply is only flushed
		// here when dispatch produced one in place (ready) rather than
		// handing the transport off to replication.
		if ready && sess != nil {
			sendStart := time.Now()
			_ = redcon.BaseWriter(sess.Conn).Flush()
			s.reqMatrix.SendPacketCost.Add(uint64(time.Since(sendStart).Nanoseconds()))
		}
	}()

	// Step 1: look up the session under the registry's own lock.
	if !s.sessions.Running() {
		return false, nil
	}
	var ok bool
	sess, ok = s.sessions.Get(connID)
	if !ok {
		panic("server: ProcessRequest of unknown connection id " + strconv.FormatUint(connID, 10))
	}

	// Step 2: maybe log the command, outside any lock.
	if s.cfg != nil && s.cfg.GeneralLog {
		log.Printf("server: conn %d: %s", connID, formatArgs(sess.Args))
	}

	// Step 3: precheck extracts the command name before any shard lock is
	// taken, so the replication handshakes below can be recognised ahead
	// of normal dispatch.
	cmdName, err := command.Precheck(sess)
	if err != nil {
		sess.Conn.WriteError("ERR " + err.Error())
		return true, nil
	}

	switch cmdName {
	case "fullsync":
		if len(sess.Args) != 2 {
			sess.Conn.WriteError("ERR wrong number of arguments for 'fullsync'")
			return true, nil
		}
		storeID, err := strconv.Atoi(string(sess.Args[1]))
		if err != nil || storeID < 0 || storeID >= len(s.kvstores) {
			sess.Conn.WriteError("ERR invalid store id")
			return true, nil
		}
		if err := s.replMgr.SupplyFullSync(sess.Conn, storeID); err != nil {
			sess.Conn.WriteError("ERR " + err.Error())
			return true, nil
		}
		// The transport is now owned by the replication manager: redcon's
		// own closed() callback never fires for a detached connection, so
		// the registry removal that normally rides on it has to happen
		// here instead, per §4.2/§8 ("session registry removes the
		// session" on a successful handoff).
		s.sessions.EndSession(connID)
		return false, nil

	case "incrsync":
		if len(sess.Args) != 4 {
			sess.Conn.WriteError("ERR wrong number of arguments for 'incrsync'")
			return true, nil
		}
		storeID, err1 := strconv.Atoi(string(sess.Args[1]))
		dstStoreID, err2 := strconv.Atoi(string(sess.Args[2]))
		binlogID, err3 := strconv.ParseInt(string(sess.Args[3]), 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || storeID < 0 || storeID >= len(s.kvstores) {
			sess.Conn.WriteError("ERR invalid arguments")
			return true, nil
		}
		if err := s.replMgr.RegisterIncrSync(sess.Conn, storeID, dstStoreID, binlogID); err != nil {
			sess.Conn.WriteError("ERR " + err.Error())
			return true, nil
		}
		// Same reasoning as the fullsync branch above: the registry never
		// hears about a detached connection's close on its own.
		s.sessions.EndSession(connID)
		return false, nil
	}

	if err := s.cmdTable.RunSessionCmd(s.cmdCtx, sess, cmdName); err != nil {
		sess.Conn.WriteError("ERR " + errText(err))
	}
	return true, nil
}

func errText(err error) string {
	switch err {
	case apperr.ErrNotFound:
		return "no such key or store"
	case apperr.ErrInternal:
		// The only current producer is withShard's destroyed-shard guard;
		// §8 scenario 2 requires this exact wire text.
		return "store not open"
	case apperr.ErrBusy:
		return "server busy"
	case apperr.ErrParse:
		return "parse error"
	case apperr.ErrAuth:
		return "auth error"
	case apperr.ErrTimeout:
		return "timeout"
	default:
		return err.Error()
	}
}

func formatArgs(args [][]byte) string {
	out := make([]byte, 0, 64)
	for i, a := range args {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, a...)
	}
	return string(out)
}
