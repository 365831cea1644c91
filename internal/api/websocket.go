package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/session"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected   = "connected"
	MsgTypePong        = "pong"
	MsgTypeRunComplete = "run:complete"
	MsgTypeRunError    = "run:error"
)

// clientSendBuffer bounds queued messages per client; a slow client misses updates
// instead of stalling the pipeline.
const clientSendBuffer = 16

// WSMessage is the envelope of every websocket frame
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// RunPayload is sent with run:complete and run:error
type RunPayload struct {
	Run     models.Run `json:"run"`
	Days    int        `json:"days"`
	ImageAt int64      `json:"imageAt,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes run notifications to connected websocket clients
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*wsClient]struct{}
	mu       sync.Mutex
}

// NewHub creates a new websocket hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The status page may be opened through a proxy
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// HandleWebSocket upgrades the connection and keeps it until the client leaves
func (hub *Hub) HandleWebSocket(c echo.Context) error {
	ws, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{conn: ws, send: make(chan []byte, clientSendBuffer)}
	hub.register(client)
	fmt.Println("[WebSocket] Client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writeLoop()
	}()

	client.queue(hub.encode(WSMessage{Type: MsgTypeConnected}))

	// Read loop: answer pings, drop everything else
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}
		if msg.Type == MsgTypePing {
			client.queue(hub.encode(WSMessage{Type: MsgTypePong}))
		}
	}

	hub.unregister(client)
	<-done
	ws.Close()
	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

// RunFinished broadcasts the outcome of a run to every client
func (hub *Hub) RunFinished(run models.Run, snap *session.Snapshot) {
	msgType := MsgTypeRunComplete
	if run.Status == models.RunStatusError {
		msgType = MsgTypeRunError
	}

	payload := RunPayload{Run: run}
	if snap != nil {
		payload.Days = len(snap.Days)
	}
	if run.Image != nil {
		payload.ImageAt = run.Image.UpdatedAt.UnixMilli()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("[WebSocket] Failed to encode run %s: %v\n", run.ID, err)
		return
	}

	hub.Broadcast(hub.encode(WSMessage{Type: msgType, ID: run.ID, Payload: raw}))
}

// Broadcast queues data for every client without blocking
func (hub *Hub) Broadcast(data []byte) {
	if data == nil {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for client := range hub.clients {
		client.queue(data)
	}
}

// Clients returns the number of connected clients
func (hub *Hub) Clients() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// Close disconnects all clients
func (hub *Hub) Close() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for client := range hub.clients {
		client.conn.Close()
	}
}

func (hub *Hub) register(client *wsClient) {
	hub.mu.Lock()
	hub.clients[client] = struct{}{}
	hub.mu.Unlock()
}

func (hub *Hub) unregister(client *wsClient) {
	hub.mu.Lock()
	if _, ok := hub.clients[client]; ok {
		delete(hub.clients, client)
		close(client.send)
	}
	hub.mu.Unlock()
}

func (hub *Hub) encode(msg WSMessage) []byte {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		fmt.Printf("[WebSocket] Failed to encode %s: %v\n", msg.Type, err)
		return nil
	}
	return data
}

// queue must only be called while the client is registered
func (c *wsClient) queue(data []byte) {
	if data == nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writeLoop is the only writer on the connection
func (c *wsClient) writeLoop() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Drain until unregister closes the channel
			for range c.send {
			}
			return
		}
	}
}
