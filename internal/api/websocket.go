package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"emberfall.gg/portcullis/internal/engine"
	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon only listens on loopback, so anything browser-based
	// is a local tool and localhost origins are the whole allow set.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return strings.Contains(origin, "://localhost") || strings.Contains(origin, "://127.0.0.1")
	},
}

const clientSendBuffer = 64

// wsClient is one connected event subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans engine events out to WebSocket subscribers. Fan-out is
// non-blocking: a client whose send buffer is full gets dropped on the
// spot rather than stalling dispatch.
type Hub struct {
	log *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		log:     logging.WithComponent("api"),
		clients: make(map[*wsClient]bool),
	}
}

// Publish implements engine.EventSink.
func (h *Hub) Publish(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			h.log.Warn("dropping slow event subscriber")
		}
	}
	metrics.Get().EventSubscribers.Set(float64(len(h.clients)))
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	metrics.Get().EventSubscribers.Set(float64(len(h.clients)))
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.Get().EventSubscribers.Set(float64(len(h.clients)))
}

// closeAll disconnects every subscriber. Server shutdown calls this
// because http.Server.Shutdown leaves hijacked connections alone.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.Get().EventSubscribers.Set(0)
}

func (h *Hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// writePump drains the send buffer onto the wire. It exits when the
// hub closes the channel or the peer stops accepting writes.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

// readPump discards inbound traffic. The stream is one-way, but the
// read is what surfaces a peer disconnect.
func (c *wsClient) readPump(h *Hub) {
	defer h.remove(c)
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	s.hub.add(c)

	go c.writePump()
	go c.readPump(s.hub)
}
