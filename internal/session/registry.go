package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dreamware/redisd/internal/apperr"
)

// Registry maps connection ids to Sessions. It tracks its own running
// state (flipped by the server entry at Startup/Shutdown) so AddSession can
// refuse admission once the server is shutting down without the caller
// needing to coordinate a separate flag.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   atomic.Uint64
	running  atomic.Bool
}

// NewRegistry creates an empty, not-yet-running Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]*Session)}
}

// SetRunning flips the registry's admission gate. The server entry calls
// this with true at the end of Startup and false at the start of Shutdown.
func (r *Registry) SetRunning(running bool) {
	r.running.Store(running)
}

// Running reports the registry's current admission state.
func (r *Registry) Running() bool {
	return r.running.Load()
}

// NextID returns a fresh monotonically increasing connection id.
func (r *Registry) NextID() uint64 {
	return r.nextID.Add(1)
}

// AddSession inserts s into the registry. Called only while running; a
// duplicate id is a fatal invariant violation and panics, since it
// indicates the id generator or the caller is broken. If the registry is
// not running, the session is silently dropped (the caller is expected to
// have refused the connection already, logging as it sees fit).
func (r *Registry) AddSession(s *Session) {
	if !r.Running() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		panic(fmt.Sprintf("session: duplicate connection id %d", s.ID))
	}
	r.sessions[s.ID] = s
}

// Get looks up a session by id.
func (r *Registry) Get(id uint64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// CancelSession asks the session with the given id to stop. Returns
// ErrBusy if the registry isn't running, ErrNotFound if no such session
// exists.
func (r *Registry) CancelSession(id uint64) error {
	if !r.Running() {
		return apperr.ErrBusy
	}
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return apperr.ErrNotFound
	}
	s.Cancel()
	return nil
}

// EndSession removes a session from the registry. Absence while running is
// a fatal invariant violation (the listener's accept/close pairing is
// broken); while not running, it's a silent no-op since Shutdown clears the
// registry wholesale.
func (r *Registry) EndSession(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		if r.running.Load() {
			panic(fmt.Sprintf("session: EndSession of unknown connection id %d while running", id))
		}
		return
	}
	delete(r.sessions, id)
}

// GetAllSessions returns a snapshot slice of every currently registered
// session, used by the stats/admin surface.
func (r *Registry) GetAllSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Clear empties the registry. Called by Shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[uint64]*Session)
}

// Len reports the number of currently registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
