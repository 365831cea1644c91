package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	e := echo.New()
	e.GET("/api/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeConnected, msg.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_PingPong(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing}))
	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypePong, msg.Type)
}

func TestHub_BroadcastsRuns(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	waitClients(t, hub, 1)

	run := models.Run{ID: "run-1", Trigger: models.TriggerChange, Status: models.RunStatusComplete, IntervalCount: 3}
	hub.RunFinished(run, &session.Snapshot{Days: make([]models.DaySeries, 2)})

	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeRunComplete, msg.Type)
	assert.Equal(t, "run-1", msg.ID)

	var payload RunPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, 3, payload.Run.IntervalCount)
	assert.Equal(t, 2, payload.Days)

	hub.RunFinished(models.Run{ID: "run-2", Status: models.RunStatusError, Error: "boom"}, nil)
	msg = readMessage(t, conn)
	assert.Equal(t, MsgTypeRunError, msg.Type)
	assert.Contains(t, string(msg.Payload), "boom")
}

func TestHub_Disconnect(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// Broadcasting with no clients is a no-op
	hub.RunFinished(models.Run{ID: "run-3", Status: models.RunStatusEmpty}, nil)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	dialHub(t, hub)
	waitClients(t, hub, 1)

	hub.Close()
	waitClients(t, hub, 0)
}
