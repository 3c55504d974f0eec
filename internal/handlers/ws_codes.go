// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom close codes in the application range (3000-3999).
const (
	InvalidAuthTokenError websocket.StatusCode = 3000
	BadSubprotocolError   websocket.StatusCode = 3001
	MissingLobbyIDError   websocket.StatusCode = 3003
	LobbyFullError        websocket.StatusCode = 3004
)
