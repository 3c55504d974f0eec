// internal/handlers/server.go
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/palace-game/palace/internal/bus"
	"github.com/palace-game/palace/internal/session"
	"github.com/palace-game/palace/internal/timer"
)

// Server bundles the shared collaborators the HTTP and WebSocket handlers
// need: the message bus clients subscribe to and the session registry that
// owns every live game.
type Server struct {
	Logger   *logrus.Logger
	Bus      *bus.Bus
	Registry *session.Registry
}

// NewServer wires a bus, a wall-clock timer service, and a registry around
// the given persistence gateway and outcome journal.
func NewServer(logger *logrus.Logger, store session.Persistence, journal session.Journal) *Server {
	b := bus.New()
	return &Server{
		Logger:   logger,
		Bus:      b,
		Registry: session.NewRegistry(b, timer.NewService(), store, journal, logger),
	}
}
