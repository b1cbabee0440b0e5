package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"market-analytics/internal/events"
	"market-analytics/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS middleware on the HTTP routes
		return true
	},
}

// WSClient represents a WebSocket client
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *WSHub
	topics    map[events.EventType]bool // Empty means every event
	closeChan chan struct{}
}

func (c *WSClient) wants(t events.EventType) bool {
	return len(c.topics) == 0 || c.topics[t]
}

type wsMessage struct {
	eventType events.EventType
	data      []byte
}

// WSHub fans bus events out to the connected clients.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	mu         sync.RWMutex
	metrics    *metrics.Registry
	logger     zerolog.Logger
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(m *metrics.Registry, logger zerolog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan wsMessage, 4096),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes every client.
func (h *WSHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.WSClientDelta(1)

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(message.eventType) {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					// Slow client
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes a client. Caller must hold the write lock.
func (h *WSHub) drop(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.WSClientDelta(-1)
}

// BroadcastEvent broadcasts an event to every client subscribed to its type
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to marshal event")
		return
	}

	select {
	case h.broadcast <- wsMessage{eventType: event.Type, data: data}:
	default:
		h.logger.Warn().Str("type", string(event.Type)).Msg("Broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug().Err(err).Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// readPump discards client messages and detects disconnects
func (c *WSClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		close(c.closeChan)
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

// handleWebSocket upgrades the connection and streams the given event types, or every
// event when none are named.
func (s *Server) handleWebSocket(topics ...events.EventType) gin.HandlerFunc {
	filter := make(map[events.EventType]bool, len(topics))
	for _, t := range topics {
		filter[t] = true
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Failed to upgrade connection")
			return
		}

		client := &WSClient{
			conn:      conn,
			send:      make(chan []byte, 256),
			hub:       s.hub,
			topics:    filter,
			closeChan: make(chan struct{}),
		}

		// Initial connection confirmation, queued before registration so it is sent first
		welcome := map[string]interface{}{
			"type":      "CONNECTED",
			"message":   "WebSocket connection established",
			"timestamp": time.Now(),
		}
		if data, err := json.Marshal(welcome); err == nil {
			client.send <- data
		}

		select {
		case client.hub.register <- client:
		case <-client.hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
