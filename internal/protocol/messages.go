// internal/protocol/messages.go
package protocol

// Kind discriminates the three client-visible message shapes.
type Kind string

const (
	KindChat      Kind = "chat"
	KindBroadcast Kind = "broadcast"
	KindEvent     Kind = "event"
	KindError     Kind = "error"
)

// EventName is the closed set of game event identifiers a client can receive.
type EventName string

const (
	EventUsers        EventName = "users"
	EventBeginning    EventName = "beginning"
	EventReconnected  EventName = "reconnected"
	EventDisconnected EventName = "disconnected"
	EventSelf         EventName = "self"
	EventRole         EventName = "role"
	EventNewCycle     EventName = "new_cycle"
	EventOut          EventName = "out"
)

// SystemUser is the username attached to chat lines the server itself emits.
const SystemUser = "Room"

// Message is the single wire envelope sent to clients. Fields are omitted
// when they do not apply to the message's Kind.
type Message struct {
	Kind     Kind      `json:"kind"`
	Username string    `json:"username,omitempty"`
	Message  string    `json:"message,omitempty"`
	Theme    string    `json:"theme,omitempty"`
	Event    EventName `json:"event,omitempty"`
	Player   string    `json:"player,omitempty"`
	Role     string    `json:"role,omitempty"`
}

// Chat relays a line of chat from username.
func Chat(username, text string) Message {
	return Message{Kind: KindChat, Username: username, Message: text}
}

// SystemChat is a chat line spoken by the room itself.
func SystemChat(text string) Message {
	return Chat(SystemUser, text)
}

// Broadcast is a themed announcement to the whole lobby.
func Broadcast(text, theme string) Message {
	return Message{Kind: KindBroadcast, Message: text, Theme: theme}
}

// Roster carries the current player list, joined with ", " in join order.
func Roster(list string) Message {
	return Message{Kind: KindEvent, Event: EventUsers, Message: list}
}

// Beginning announces that the lobby has filled and the game is starting.
func Beginning() Message {
	return Message{Kind: KindEvent, Event: EventBeginning}
}

// Reconnected announces that a player re-established their connection.
func Reconnected(player string) Message {
	return Message{Kind: KindEvent, Event: EventReconnected, Player: player}
}

// Disconnected announces that a player dropped mid-game.
func Disconnected(player string) Message {
	return Message{Kind: KindEvent, Event: EventDisconnected, Player: player}
}

// Self tells a single client its own identity. Always sent direct.
func Self(player string) Message {
	return Message{Kind: KindEvent, Event: EventSelf, Player: player}
}

// Role reveals a player's role. Always sent direct, never to the group.
func Role(player, role string) Message {
	return Message{Kind: KindEvent, Event: EventRole, Player: player, Role: role}
}

// NewCycle announces the start of a discussion/voting round.
func NewCycle() Message {
	return Message{Kind: KindEvent, Event: EventNewCycle}
}

// Out announces an elimination, revealing the eliminated player's role.
func Out(player, role string) Message {
	return Message{Kind: KindEvent, Event: EventOut, Player: player, Role: role}
}

// Error is a client-visible notice that an action was rejected.
func Error(text string) Message {
	return Message{Kind: KindError, Message: text}
}
