// internal/session/roles.go
package session

import "github.com/google/uuid"

// Role is the secret allegiance dealt to a player when the game begins.
type Role string

const (
	RoleUnassigned Role = ""
	RoleKing       Role = "King"
	RoleGuard      Role = "Guard"
	RoleBeast      Role = "Beast"
)

// Faction identifies a winning side.
type Faction string

const (
	FactionPalace Faction = "palace"
	FactionBeast  Faction = "beast"
)

// Capacity is how many players a lobby holds before the game begins.
const Capacity = 6

// newDeck returns the fixed role deck for one game. Roles are popped from
// the end of the slice after a single shuffle per game.
func newDeck() []Role {
	return []Role{RoleKing, RoleGuard, RoleGuard, RoleGuard, RoleGuard, RoleBeast}
}

// Phase is the lifecycle state of a Session. Phases only move forward,
// except Cycle which repeats until the game resolves.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseRoleAssignment
	PhaseCycle
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseRoleAssignment:
		return "role_assignment"
	case PhaseCycle:
		return "cycle"
	case PhaseGameOver:
		return "game_over"
	}
	return "unknown"
}

// Player is one roster entry. It is owned exclusively by its Session and
// must only be touched with the session lock held.
type Player struct {
	Username  string
	Channel   uuid.UUID
	Connected bool
	Spectator bool
	Out       bool
	Role      Role
	VoteCount int
	Voted     bool
}

// eligible reports whether the player counts toward the cycle's voter total.
// Disconnected players stay eligible; their pending vote remains counted.
func (p *Player) eligible() bool {
	return !p.Spectator && !p.Out
}
