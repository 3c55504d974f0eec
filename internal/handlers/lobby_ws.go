// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/palace-game/palace/internal/middleware"
	"github.com/palace-game/palace/internal/protocol"
	"github.com/palace-game/palace/internal/session"
)

// inboundFrame is the single message shape clients send over the lobby
// socket. Command parsing happens server-side on the text itself.
type inboundFrame struct {
	Message string `json:"message"`
}

// parseCommand reinterprets chat text carrying a two-character command
// prefix as a structured event. "v>name" votes for name, "j>name" is the
// jump elimination, "c>name" is the legacy vote alias. Everything else is
// relayed verbatim as chat.
func parseCommand(username, text string) session.Event {
	if len(text) > 2 {
		switch text[:2] {
		case "v>", "c>":
			return session.VoteEvent{Voter: username, Target: strings.TrimSpace(text[2:])}
		case "j>":
			return session.JumpEvent{Actor: username, Target: strings.TrimSpace(text[2:])}
		}
	}
	return session.ChatEvent{Username: username, Text: text}
}

// LobbyWSHandler upgrades the connection for a lobby, authenticates the
// player, registers them on the bus, and runs the read loop that feeds the
// lobby's session. The URL names the lobby: /lobby/ws/{lobby_name}.
func LobbyWSHandler(logger *logrus.Logger, srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbyName := strings.Trim(strings.TrimPrefix(r.URL.Path, "/lobby/ws/"), "/")
		if lobbyName == "" || strings.Contains(lobbyName, "/") {
			http.Error(w, "Missing lobby name in path (/lobby/ws/{lobby_name})", http.StatusBadRequest)
			return
		}

		// Authenticate before the upgrade so a freshly minted guest token
		// rides the handshake response; cookies set after Accept never reach
		// the client.
		username, err := EnsureUser(w, r)
		if err != nil {
			logger.Warnf("authentication failed for lobby %s: %v", lobbyName, err)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"palace"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for lobby %s: %v", lobbyName, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "palace" {
			c.Close(BadSubprotocolError, "Client must use the 'palace' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		channelID, out := srv.Bus.Register(64)
		group := session.GroupAddress(lobbyName)
		srv.Bus.Subscribe(group, channelID)

		sess := srv.Registry.GetOrCreate(lobbyName)
		joinErr := sess.Handle(session.ConnectEvent{Username: username, Channel: channelID})
		if errors.Is(joinErr, session.ErrSessionReplaced) {
			// The session emptied and left the registry between lookup and
			// join; a replacement owns the lobby id now.
			sess = srv.Registry.GetOrCreate(lobbyName)
			joinErr = sess.Handle(session.ConnectEvent{Username: username, Channel: channelID})
		}
		if joinErr != nil {
			srv.Bus.Unregister(channelID)
			if errors.Is(joinErr, session.ErrCapacityExceeded) {
				c.Close(LobbyFullError, "Lobby is full.")
			} else {
				logger.Warnf("join failed for %s in lobby %s: %v", username, lobbyName, joinErr)
				c.Close(websocket.StatusInternalError, "Join failed.")
			}
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, out, logger)
		readErr := readLobbyMessages(ctx, c, srv, sess, username, channelID, logger)

		// Cleanup: unregister first so no further messages queue for a
		// connection that is gone, then tell the session.
		srv.Bus.Unregister(channelID)
		if err := sess.Handle(session.DisconnectEvent{Username: username}); err != nil {
			logger.Warnf("disconnect handling for %s in lobby %s: %v", username, lobbyName, err)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readLobbyMessages reads client frames until the connection dies, turning
// each into a session event. Session-level rejections become direct error
// notices; they never tear down the connection.
func readLobbyMessages(ctx context.Context, c *websocket.Conn, srv *Server, sess *session.Session, username string, channelID uuid.UUID, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Warnf("invalid JSON from %s: %v", username, err)
			srv.Bus.SendDirect(channelID, protocol.Error("Invalid JSON format."))
			continue
		}

		ev := parseCommand(username, frame.Message)
		if err := sess.Handle(ev); err != nil {
			switch {
			case errors.Is(err, session.ErrNotFound):
				srv.Bus.SendDirect(channelID, protocol.Error("No such player."))
			case errors.Is(err, session.ErrInvalidPhase):
				srv.Bus.SendDirect(channelID, protocol.Error("You can't do that right now."))
			default:
				logger.Warnf("event from %s rejected: %v", username, err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// writePump drains the player's bus channel onto the socket. It exits when
// the bus closes the channel on Unregister or when a write fails.
func writePump(ctx context.Context, c *websocket.Conn, out <-chan protocol.Message, logger *logrus.Logger) {
	for msg := range out {
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Errorf("failed to marshal outbound %s message: %v", msg.Kind, err)
			continue
		}
		writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = c.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			// Read loop notices the dead connection; just stop writing.
			return
		}
	}
}
