// internal/session/registry.go
package session

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/palace-game/palace/internal/timer"
)

// Registry owns the lobby-id -> Session mapping. It guarantees at most one
// Session exists per lobby id, even under concurrent first joins, and that
// two lobby ids never share mutable state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	bus     MessageBus
	timers  timer.Service
	store   Persistence
	journal Journal
	logger  *logrus.Logger
}

// NewRegistry returns an empty Registry whose sessions will share the given
// collaborators.
func NewRegistry(bus MessageBus, timers timer.Service, store Persistence, journal Journal, logger *logrus.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		bus:      bus,
		timers:   timers,
		store:    store,
		journal:  journal,
		logger:   logger,
	}
}

// GetOrCreate returns the session for lobbyID, creating and storing it
// atomically on first join.
func (r *Registry) GetOrCreate(lobbyID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[lobbyID]; ok {
		return s
	}
	s := New(lobbyID, Config{
		Bus:      r.bus,
		Timers:   r.timers,
		Store:    r.store,
		Journal:  r.journal,
		Logger:   r.logger,
		OnEmpty:  r.Remove,
		OnRevive: r.reinsert,
	})
	r.sessions[lobbyID] = s
	return s
}

// Remove drops a session from the registry. Sessions call this through
// their OnEmpty hook when the last participant leaves; calling it again, or
// for an unknown id, is a no-op.
func (r *Registry) Remove(lobbyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, lobbyID)
}

// reinsert restores a detached session when a connect reaches it after its
// OnEmpty removal. It reports false if a replacement session already owns
// the lobby id, so callers never end up with two live sessions publishing to
// the same group address.
func (r *Registry) reinsert(lobbyID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[lobbyID]; ok {
		return cur == s
	}
	r.sessions[lobbyID] = s
	return true
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Summaries lists the live sessions sorted by lobby id, for the lobby
// listing endpoint.
func (r *Registry) Summaries() []Summary {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	// Snapshot outside the registry lock; each session locks itself.
	out := make([]Summary, 0, len(live))
	for _, s := range live {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LobbyID < out[j].LobbyID })
	return out
}
