package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social/models"
)

// numericTokens treats the token as the decimal user id.
type numericTokens struct{}

func (numericTokens) Parse(token string) (int64, error) {
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("bad token")
	}
	return id, nil
}

func startManager(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	srv := httptest.NewServer(Handler(m, numericTokens{}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return m, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev models.Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func waitConnected(t *testing.T, m *Manager, userID int64, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return m.Connected(userID) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerRejectsMissingOrBadToken(t *testing.T) {
	_, srv := startManager(t)

	for _, q := range []string{"", "?token=abc"} {
		resp, err := http.Get(srv.URL + "/" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestNotifyReachesOnlyRecipients(t *testing.T) {
	m, srv := startManager(t)

	alice := dial(t, srv, "1")
	bob := dial(t, srv, "2")
	assert.Equal(t, "connected", readEvent(t, alice).Type)
	assert.Equal(t, "connected", readEvent(t, bob).Type)
	waitConnected(t, m, 1, 1)
	waitConnected(t, m, 2, 1)

	m.Notify([]int64{1}, models.Event{Type: models.EventNewFollower, Payload: map[string]any{"follower_id": 2}})
	m.Notify([]int64{2}, models.Event{Type: models.EventPostLiked})

	assert.Equal(t, models.EventNewFollower, readEvent(t, alice).Type)
	assert.Equal(t, models.EventPostLiked, readEvent(t, bob).Type)
}

func TestNotifyFansOutToEveryConnection(t *testing.T) {
	m, srv := startManager(t)

	first := dial(t, srv, "5")
	second := dial(t, srv, "5")
	readEvent(t, first)
	readEvent(t, second)
	waitConnected(t, m, 5, 2)

	m.Notify([]int64{5}, models.Event{Type: models.EventPostCreated})
	assert.Equal(t, models.EventPostCreated, readEvent(t, first).Type)
	assert.Equal(t, models.EventPostCreated, readEvent(t, second).Type)
}

func TestPingAnsweredWithPong(t *testing.T) {
	_, srv := startManager(t)

	conn := dial(t, srv, "3")
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", readEvent(t, conn).Type)
}

func TestDisconnectUnregisters(t *testing.T) {
	m, srv := startManager(t)

	conn := dial(t, srv, "9")
	readEvent(t, conn)
	waitConnected(t, m, 9, 1)

	require.NoError(t, conn.Close())
	waitConnected(t, m, 9, 0)

	// Nobody left to receive; must not block.
	m.Notify([]int64{9}, models.Event{Type: models.EventPostLiked})
}
