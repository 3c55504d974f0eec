// internal/handlers/handlers_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palace-game/palace/internal/auth"
	"github.com/palace-game/palace/internal/protocol"
	"github.com/palace-game/palace/internal/session"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		name string
		text string
		want session.Event
	}{
		{"plain chat", "hello everyone", session.ChatEvent{Username: "alice", Text: "hello everyone"}},
		{"vote", "v>bob", session.VoteEvent{Voter: "alice", Target: "bob"}},
		{"vote alias", "c>bob", session.VoteEvent{Voter: "alice", Target: "bob"}},
		{"jump", "j>bob", session.JumpEvent{Actor: "alice", Target: "bob"}},
		{"vote trims target", "v>  bob ", session.VoteEvent{Voter: "alice", Target: "bob"}},
		{"bare prefix is chat", "v>", session.ChatEvent{Username: "alice", Text: "v>"}},
		{"prefix mid-text is chat", "I say v>bob", session.ChatEvent{Username: "alice", Text: "I say v>bob"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseCommand("alice", tc.text))
		})
	}
}

func TestListLobbiesHandler(t *testing.T) {
	logger := logrus.New()
	srv := NewServer(logger, nil, nil)

	sess := srv.Registry.GetOrCreate("atrium")
	require.NoError(t, sess.Handle(session.ConnectEvent{Username: "alice", Channel: uuid.New()}))
	require.NoError(t, sess.Handle(session.ConnectEvent{Username: "bob", Channel: uuid.New()}))

	req := httptest.NewRequest("GET", "/lobby/list", nil)
	rec := httptest.NewRecorder()
	ListLobbiesHandler(srv)(rec, req)

	require.Equal(t, 200, rec.Code)
	var summaries []session.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "atrium", summaries[0].LobbyID)
	assert.Equal(t, "lobby", summaries[0].Phase)
	assert.Equal(t, 2, summaries[0].Players)
}

func TestListLobbiesRejectsPost(t *testing.T) {
	srv := NewServer(logrus.New(), nil, nil)
	req := httptest.NewRequest("POST", "/lobby/list", nil)
	rec := httptest.NewRecorder()
	ListLobbiesHandler(srv)(rec, req)
	assert.Equal(t, 405, rec.Code)
}

// TestLobbyWSAuthenticatesBeforeUpgrade runs a real handshake against the
// lobby socket handler. Identity resolution happens on the plain HTTP
// request, before the upgrade, so anything EnsureUser writes (a guest's
// auth_token cookie) still rides the handshake response.
func TestLobbyWSAuthenticatesBeforeUpgrade(t *testing.T) {
	auth.Init() // ephemeral keys, no DB needed
	logger := logrus.New()
	srv := NewServer(logger, nil, nil)

	ts := httptest.NewServer(http.HandlerFunc(LobbyWSHandler(logger, srv)))
	defer ts.Close()

	token, err := auth.CreateJWT("alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/lobby/ws/atrium"
	c, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{"palace"},
		HTTPHeader:   http.Header{"Cookie": {"auth_token=" + token}},
	})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// The authenticated identity joins the session and gets its self event.
	var msg protocol.Message
	for {
		_, data, readErr := c.Read(ctx)
		require.NoError(t, readErr)
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Kind == protocol.KindEvent && msg.Event == protocol.EventSelf {
			break
		}
	}
	assert.Equal(t, "alice", msg.Player)
	assert.Equal(t, 1, srv.Registry.Len())
}

func TestExtractTokenFromCookie(t *testing.T) {
	assert.Equal(t, "abc123", extractTokenFromCookie("auth_token=abc123"))
	assert.Equal(t, "abc123", extractTokenFromCookie("session=x; auth_token=abc123; theme=dark"))
	assert.Equal(t, "", extractTokenFromCookie("session=x"))
}
