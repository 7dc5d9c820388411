package http

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub maps player ids to their outbound websocket channel. It implements
// app.Sender: delivery is best-effort and never blocks the caller, so a slow
// or broken connection cannot stall a room broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// Register wires a connection into the hub and starts its writer goroutine,
// the only goroutine that writes to the socket.
func (h *Hub) Register(playerID string, conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.mu.Lock()
	h.clients[playerID] = c
	h.mu.Unlock()
	go c.writePump(playerID)
}

// Unregister drops the player's channel. Safe to call once per connection.
func (h *Hub) Unregister(playerID string) {
	h.mu.Lock()
	c, ok := h.clients[playerID]
	if ok {
		delete(h.clients, playerID)
		close(c.send)
	}
	h.mu.Unlock()
}

// Unicast delivers event to playerID if the channel is open, silently
// dropping otherwise.
func (h *Hub) Unicast(playerID string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("marshal outbound event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[playerID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("player", playerID).Msg("outbound buffer full, dropping event")
	}
}

func (c *client) writePump(playerID string) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Str("player", playerID).Msg("ws write failed")
			return
		}
	}
}
