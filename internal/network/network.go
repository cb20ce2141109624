// Package network fronts the server with a RESP listener built on
// github.com/tidwall/redcon (§6 "Wire protocol"): it turns raw connections
// into sessions and complete commands into ProcessRequest calls, and serves
// the Prometheus /metrics and JSON /stats surface on a second, plain
// net/http mux (§6 "Stats JSON", §4.5 "Prometheus wiring").
package network

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/redcon"

	"github.com/dreamware/redisd/internal/session"
)

// Dispatcher is the subset of the server entry's behavior the network
// layer needs: turning one fully-parsed command on one connection into a
// response. It is a narrow interface (rather than network importing
// internal/server outright) so the server can own the network without a
// back-import cycle.
type Dispatcher interface {
	ProcessRequest(connID uint64) (bool, error)
}

// StatsProvider supplies the flat counter maps the JSON /stats endpoint
// reports, keyed by section name ("network", "request", "req_pool").
type StatsProvider interface {
	StatsSection(name string) (map[string]uint64, bool)
}

// Server wraps a redcon.Server and the HTTP stats/metrics mux.
type Server struct {
	addr       string
	metricsSrv *http.Server
	redconSrv  *redcon.Server

	registry   *session.Registry
	dispatcher Dispatcher

	// OnConnCreated/OnConnReleased/OnInvalidPacket/OnStickyPacket, if set,
	// back the network matrix counters of §4.5 (connCreated/connReleased/
	// invalidPackets/stickyPackets); the server entry wires these to its
	// own matrix.Network instance at construction time.
	OnConnCreated   func()
	OnConnReleased  func()
	OnInvalidPacket func()
	OnStickyPacket  func()
}

// New builds a Server listening for RESP connections on addr. metricsAddr,
// if non-empty, additionally serves /metrics and /stats on its own mux.
func New(addr, metricsAddr string, registry *session.Registry, dispatcher Dispatcher, stats StatsProvider) *Server {
	s := &Server{addr: addr, registry: registry, dispatcher: dispatcher}
	s.redconSrv = redcon.NewServer(addr, s.handle, s.accept, s.closed)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			serveStats(w, r, stats)
		})
		s.metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux}
	}
	return s
}

// ListenAndServe starts accepting RESP connections; it blocks until the
// listener is closed by Stop, per §4.1 step 9.
func (s *Server) ListenAndServe() error {
	if s.metricsSrv != nil {
		go func() {
			_ = s.metricsSrv.ListenAndServe()
		}()
	}
	return s.redconSrv.ListenAndServe()
}

// Stop refuses new connections and closes the listener(s). It does not
// wait for in-flight commands to finish; that's the executor pool's job.
func (s *Server) Stop() error {
	if s.metricsSrv != nil {
		_ = s.metricsSrv.Close()
	}
	return s.redconSrv.Close()
}

func (s *Server) accept(conn redcon.Conn) bool {
	if !s.registry.Running() {
		return false
	}
	id := s.registry.NextID()
	sess := session.New(id, conn)
	conn.SetContext(sess)
	s.registry.AddSession(sess)
	if s.OnConnCreated != nil {
		s.OnConnCreated()
	}
	return true
}

func (s *Server) closed(conn redcon.Conn, err error) {
	sess, ok := conn.Context().(*session.Session)
	if !ok || sess == nil {
		return
	}
	s.registry.EndSession(sess.ID)
	if s.OnConnReleased != nil {
		s.OnConnReleased()
	}
}

func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	sess, ok := conn.Context().(*session.Session)
	if !ok || sess == nil {
		conn.WriteError("ERR no session for connection")
		if s.OnInvalidPacket != nil {
			s.OnInvalidPacket()
		}
		return
	}
	sess.Args = cmd.Args

	// A non-empty peek means this read already pulled in more than one
	// pipelined command off the wire before we got to handle this one — a
	// "sticky packet" in the classic TCP-coalescing sense. PeekPipeline
	// only looks, it doesn't consume, so redcon still dispatches each of
	// those commands through handle() in turn exactly as it would anyway.
	if s.OnStickyPacket != nil && len(conn.PeekPipeline()) > 0 {
		s.OnStickyPacket()
	}

	ready, err := s.dispatcher.ProcessRequest(sess.ID)
	if err != nil {
		conn.WriteError("ERR " + err.Error())
		return
	}
	if !ready {
		// The session's transport has been borrowed (replication
		// handshake); nothing more to do on this connection.
		return
	}
}

func serveStats(w http.ResponseWriter, r *http.Request, stats StatsProvider) {
	sections := strings.Split(r.URL.Query().Get("section"), ",")
	out := make(map[string]map[string]uint64, len(sections))
	for _, name := range sections {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if m, ok := stats.StatsSection(name); ok {
			out[name] = m
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		http.Error(w, fmt.Sprintf("encode error: %v", err), http.StatusInternalServerError)
	}
}
