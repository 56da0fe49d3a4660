package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeongseonghan/nr-sync/internal/logging"
)

const (
	clientQueue  = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsClient owns one connection; only its writer goroutine writes to conn.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// WSHub fans detection events out to websocket clients. A client whose
// queue fills up is disconnected.
type WSHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	log     logging.Logger
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(log logging.Logger) *WSHub {
	if log == nil {
		log = logging.Noop()
	}
	return &WSHub{
		clients: make(map[*wsClient]struct{}),
		log:     log,
	}
}

// Attach registers conn and serves it until the peer goes away.
func (h *WSHub) Attach(conn *websocket.Conn) {
	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("websocket client connected", logging.Int("clients", n))

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *WSHub) detach(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.log.Info("websocket client disconnected", logging.Int("clients", n))
	}
}

func (h *WSHub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("websocket write failed", logging.Err(err))
			h.detach(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop drains client frames so that a close is noticed.
func (h *WSHub) readLoop(c *wsClient) {
	defer h.detach(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WSHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// Broadcast queues a message for every connected client.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("websocket marshal failed", logging.Err(err))
		return
	}

	h.mu.Lock()
	var slow []*wsClient
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.log.Warn("websocket client too slow, disconnecting")
		h.detach(c)
	}
}

// BroadcastDetection sends a decoded block to all clients.
func (h *WSHub) BroadcastDetection(ev DetectionEvent) {
	h.Broadcast(WSMessage{Type: "detection", Payload: ev})
}

// BroadcastMessage sends a reassembled burst message to all clients.
func (h *WSHub) BroadcastMessage(ev MessageEvent) {
	h.Broadcast(WSMessage{Type: "message", Payload: ev})
}
