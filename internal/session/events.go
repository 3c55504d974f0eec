// internal/session/events.go
package session

import "github.com/google/uuid"

// Event is the closed set of inputs a Session consumes. The gateway and the
// timer service both feed this type through Session.Handle, which serializes
// them under the session lock. Being a sealed interface, the dispatch switch
// in Handle is checked for exhaustiveness at compile time.
type Event interface {
	isEvent()
}

// ConnectEvent is a player or spectator joining (or rejoining) the lobby.
type ConnectEvent struct {
	Username string
	Channel  uuid.UUID
}

// DisconnectEvent is a connection going away, cleanly or not.
type DisconnectEvent struct {
	Username string
}

// ChatEvent is free-form chat text relayed to the whole lobby.
type ChatEvent struct {
	Username string
	Text     string
}

// VoteEvent is one player voting to eliminate another during a cycle.
type VoteEvent struct {
	Voter  string
	Target string
}

// JumpEvent is the out-of-band immediate elimination action. It bypasses
// voting and always ends the game.
type JumpEvent struct {
	Actor  string
	Target string
}

func (ConnectEvent) isEvent()    {}
func (DisconnectEvent) isEvent() {}
func (ChatEvent) isEvent()       {}
func (VoteEvent) isEvent()       {}
func (JumpEvent) isEvent()       {}
