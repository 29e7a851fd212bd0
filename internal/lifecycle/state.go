package lifecycle

import (
	"sync"

	"github.com/dipperhq/dippershell/internal/backend"
)

// State is the process-wide shared lifecycle state: the active backend port
// and, when this run spawned its own backend, the child process handle.
// All access is under the mutex; no lock is ever held across a probe or
// spawn call.
//
// A non-nil process implies the session started its own backend rather
// than adopting an external one.
type State struct {
	mu   sync.Mutex
	port *int
	proc *backend.Handle
}

func NewState() *State { return &State{} }

// Port returns the active backend port once setup has chosen one.
func (s *State) Port() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return 0, false
	}
	return *s.port, true
}

func (s *State) setPort(p int) {
	s.mu.Lock()
	s.port = &p
	s.mu.Unlock()
}

func (s *State) setProcess(h *backend.Handle) {
	s.mu.Lock()
	s.proc = h
	s.mu.Unlock()
}

// TakeProcess atomically returns the child handle and empties the slot.
// Window-close and app-exit termination triggers race on this; take-and-
// clear guarantees at most one of them receives the handle and performs
// the kill. The other sees nil and no-ops.
func (s *State) TakeProcess() *backend.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.proc
	s.proc = nil
	return h
}

// HasProcess reports whether this run currently owns a spawned backend.
func (s *State) HasProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}
