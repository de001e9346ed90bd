package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub manages a single active connection. A new client replaces the old one.
type Hub struct {
	client     *Client // nil when nobody is connected
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Client is the active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			if h.client != nil {
				close(h.client.send)
				h.client = nil
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			if h.client != nil {
				close(h.client.send)
			}
			h.client = client
			h.mutex.Unlock()
			log.Info().Msg("🔌 WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			// only the active client may clear the slot
			if h.client == client {
				close(h.client.send)
				h.client = nil
				log.Info().Msg("🔌 WebSocket client disconnected")
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			if h.client != nil {
				select {
				case h.client.send <- message:
				default:
					log.Warn().Msg("Client send channel is full, closing connection")
					close(h.client.send)
					h.client = nil
				}
			}
			h.mutex.Unlock()
		}
	}
}

// HasClient reports whether a client is connected.
func (h *Hub) HasClient() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.client != nil
}

// Broadcast sends a typed message to the active client, if any. It never blocks.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	if !h.HasClient() {
		log.Debug().Str("type", msgType).Msg("No active client, skipping message")
		return
	}

	jsonData, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("Failed to marshal message")
		return
	}

	select {
	case h.broadcast <- jsonData:
	default:
		log.Warn().Str("type", msgType).Msg("Broadcast queue is full, dropping message")
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		// reading is how a disconnect is noticed
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("readPump error")
			}
			break
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			// the hub closed the channel
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warn().Err(err).Msg("writePump error")
			return
		}
	}
}
