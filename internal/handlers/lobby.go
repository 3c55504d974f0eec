// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// extractTokenFromCookie pulls the auth_token value out of a raw Cookie
// header.
func extractTokenFromCookie(cookie string) string {
	parts := strings.Split(cookie, "auth_token=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// ListLobbiesHandler returns the active lobbies with their phase and player
// counts so clients can pick one to join.
func ListLobbiesHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(srv.Registry.Summaries()); err != nil {
			srv.Logger.Warnf("failed to encode lobby list: %v", err)
		}
	}
}
