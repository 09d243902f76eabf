package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/insightdeck/insightdeck/internal/observability"
)

const DefaultID = "default"

// Transition is one orchestrator step applied to a stored state.
type Transition func(ctx context.Context, prev State) (State, error)

type entry struct {
	mu    sync.Mutex
	state State
	// removed is set, under mu, once the entry has left the store.
	removed bool
}

// Store keeps one State per session id. Requests for the same session run
// one at a time; different sessions never share a connection. A session that
// is disconnected and has an empty log panel holds nothing worth keeping and
// is dropped, so unknown ids do not accumulate.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	connected map[string]bool
	logger    *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		sessions:  map[string]*entry{},
		connected: map[string]bool{},
		logger:    logger,
	}
}

func normalizeID(id string) string {
	if id == "" {
		return DefaultID
	}
	return id
}

// acquire returns the live entry for id with its mutex held, creating it
// when missing.
func (s *Store) acquire(id string) *entry {
	for {
		s.mu.Lock()
		e, ok := s.sessions[id]
		if !ok {
			e = &entry{state: New()}
			s.sessions[id] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// Get returns the session's state, or a fresh one for unknown ids.
func (s *Store) Get(id string) State {
	id = normalizeID(id)
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return New()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Len reports how many sessions are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Apply runs fn against the session's current state and stores whatever
// state it returns, including the prior state on failure.
func (s *Store) Apply(ctx context.Context, id string, fn Transition) (State, error) {
	id = normalizeID(id)
	e := s.acquire(id)
	defer e.mu.Unlock()

	next, err := fn(ctx, e.state)
	e.state = next
	s.track(id, next.Connected())
	if !next.Connected() && len(next.Logs) == 0 {
		s.remove(id, e)
	}
	return next, err
}

// View runs fn with the session locked without replacing its state.
func (s *Store) View(ctx context.Context, id string, fn func(ctx context.Context, st State) error) error {
	id = normalizeID(id)
	e := s.acquire(id)
	defer e.mu.Unlock()
	if !e.state.Connected() && len(e.state.Logs) == 0 {
		s.remove(id, e)
	}
	return fn(ctx, e.state)
}

// remove drops e from the store. The caller holds e.mu.
func (s *Store) remove(id string, e *entry) {
	e.removed = true
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[id] == e {
		delete(s.sessions, id)
	}
}

func (s *Store) track(id string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if connected {
		s.connected[id] = true
	} else {
		delete(s.connected, id)
	}
	observability.SetActiveSessions(len(s.connected))
}

// Close disconnects every session.
func (s *Store) Close() {
	s.mu.Lock()
	entries := make(map[string]*entry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.Unlock()

	for id, e := range entries {
		e.mu.Lock()
		if e.state.client != nil {
			if err := e.state.client.Close(); err != nil {
				s.logger.Warn("closing session connection failed", slog.String("session", id), slog.String("error", err.Error()))
			}
			e.state.client = nil
			e.state.Phase = PhaseDisconnected
		}
		e.mu.Unlock()
		s.track(id, false)
	}
}
