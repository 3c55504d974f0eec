// internal/session/errors.go
package session

import "errors"

var (
	// ErrNotFound means an event referenced an identity the roster does not hold.
	ErrNotFound = errors.New("player not found")

	// ErrInvalidPhase means the action is illegal in the session's current
	// phase, e.g. voting during Lobby or after the game ended.
	ErrInvalidPhase = errors.New("action not allowed in current phase")

	// ErrCapacityExceeded means a join hit a full lobby that has not started yet.
	ErrCapacityExceeded = errors.New("lobby is full")

	// ErrSessionReplaced means this session emptied out and another session
	// now owns its lobby id; the caller should look the lobby up again and
	// join the replacement.
	ErrSessionReplaced = errors.New("session replaced")
)
