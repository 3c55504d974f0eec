// internal/session/registry_test.go
package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palace-game/palace/internal/timer"
)

func newTestRegistry() *Registry {
	return NewRegistry(newMockBus(), timer.NewManual(), &recorderStore{}, nil, nil)
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	r := newTestRegistry()
	a := r.GetOrCreate("zed")
	b := r.GetOrCreate("zed")
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())
}

func TestGetOrCreateConcurrentFirstJoin(t *testing.T) {
	r := newTestRegistry()

	const goroutines = 32
	results := make([]*Session, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, results[0], results[i], "all concurrent joiners must see one session")
	}
	assert.Equal(t, 1, r.Len())
}

func TestSessionsDoNotShareState(t *testing.T) {
	r := newTestRegistry()
	a := r.GetOrCreate("alpha")
	b := r.GetOrCreate("beta")

	require.NoError(t, a.Handle(ConnectEvent{Username: "P1", Channel: uuid.New()}))
	assert.Equal(t, 1, a.Snapshot().Players)
	assert.Zero(t, b.Snapshot().Players)
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	r.GetOrCreate("zed")
	r.Remove("zed")
	r.Remove("zed")
	r.Remove("never-existed")
	assert.Zero(t, r.Len())
}

func TestEmptySessionDropsFromRegistry(t *testing.T) {
	r := newTestRegistry()
	s := r.GetOrCreate("zed")
	require.NoError(t, s.Handle(ConnectEvent{Username: "P1", Channel: uuid.New()}))
	require.NoError(t, s.Handle(DisconnectEvent{Username: "P1"}))
	assert.Zero(t, r.Len())
}

func TestJoinRevivesEmptiedSession(t *testing.T) {
	r := newTestRegistry()
	s := r.GetOrCreate("zed")
	require.NoError(t, s.Handle(ConnectEvent{Username: "P1", Channel: uuid.New()}))
	require.NoError(t, s.Handle(DisconnectEvent{Username: "P1"}))
	require.Zero(t, r.Len(), "empty session must leave the registry")

	// A joiner holding the stale reference connects before anyone runs
	// GetOrCreate again: the session must re-register itself, not accept
	// members while orphaned.
	require.NoError(t, s.Handle(ConnectEvent{Username: "P2", Channel: uuid.New()}))
	assert.Equal(t, 1, r.Len())
	assert.Same(t, s, r.GetOrCreate("zed"))
	assert.Equal(t, 1, s.Snapshot().Players)
}

func TestStaleSessionRefusesJoinWhenReplaced(t *testing.T) {
	r := newTestRegistry()
	old := r.GetOrCreate("zed")
	require.NoError(t, old.Handle(ConnectEvent{Username: "P1", Channel: uuid.New()}))
	require.NoError(t, old.Handle(DisconnectEvent{Username: "P1"}))

	replacement := r.GetOrCreate("zed")
	require.NotSame(t, old, replacement)

	err := old.Handle(ConnectEvent{Username: "P2", Channel: uuid.New()})
	require.ErrorIs(t, err, ErrSessionReplaced)
	assert.Zero(t, old.Snapshot().Players, "replaced session must not accept members")
	assert.Equal(t, 1, r.Len())
	assert.Same(t, replacement, r.GetOrCreate("zed"))

	// Retrying against the current session, as the gateway does, succeeds.
	require.NoError(t, replacement.Handle(ConnectEvent{Username: "P2", Channel: uuid.New()}))
	assert.Equal(t, 1, replacement.Snapshot().Players)
}

func TestConcurrentLeaveAndJoinKeepOneSession(t *testing.T) {
	r := newTestRegistry()

	for i := 0; i < 50; i++ {
		stale := r.GetOrCreate("zed")
		require.NoError(t, stale.Handle(ConnectEvent{Username: "P1", Channel: uuid.New()}))

		var joinErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = stale.Handle(DisconnectEvent{Username: "P1"})
		}()
		go func() {
			defer wg.Done()
			joinErr = stale.Handle(ConnectEvent{Username: "P2", Channel: uuid.New()})
			if errors.Is(joinErr, ErrSessionReplaced) {
				joinErr = r.GetOrCreate("zed").Handle(ConnectEvent{Username: "P2", Channel: uuid.New()})
			}
		}()
		wg.Wait()
		require.NoError(t, joinErr)

		// Whatever the interleaving, exactly one session owns the lobby id
		// and P2 is a member of it.
		require.Equal(t, 1, r.Len())
		cur := r.GetOrCreate("zed")
		require.Equal(t, 1, cur.Snapshot().Players)

		require.NoError(t, cur.Handle(DisconnectEvent{Username: "P2"}))
		require.Zero(t, r.Len())
	}
}

func TestSummariesSortedByLobby(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"gamma", "alpha", "beta"} {
		s := r.GetOrCreate(id)
		require.NoError(t, s.Handle(ConnectEvent{Username: "P_" + id, Channel: uuid.New()}))
	}

	sums := r.Summaries()
	require.Len(t, sums, 3)
	var ids []string
	for _, sum := range sums {
		ids = append(ids, sum.LobbyID)
		assert.Equal(t, 1, sum.Players)
		assert.Equal(t, "lobby", sum.Phase)
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, ids)
}
