package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, implement proper origin checking
		return true
	},
}

// ChatSink receives chat frames arriving over a WebSocket connection.
type ChatSink func(streamID, userID, username, content string) error

// Client represents a WebSocket subscriber
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	userID   string
	username string
	streams  map[string]bool
}

// Hub maintains active WebSocket connections grouped into per-stream rooms
// and implements events.Notifier: every engine event is delivered at most
// once to the subscribers of its stream. Slow consumers are dropped, never
// waited on.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	chatSink   ChatSink
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// SetChatSink wires inbound chat frames into the engine. Must be called
// before Run.
func (h *Hub) SetChatSink(sink ChatSink) {
	h.chatSink = sink
}

// Run starts the hub's register/unregister loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Publish implements events.Notifier.
func (h *Hub) Publish(e events.Event) error {
	data, err := events.Marshal(e)
	if err != nil {
		return err
	}
	h.BroadcastToStream(e.StreamID(), data)
	return nil
}

// Close gracefully shuts down the hub
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	log.Info().Str("module", "ws").Str("user_id", client.userID).Str("username", client.username).Msg("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		// Remove from all stream rooms
		for streamID := range client.streams {
			if room, exists := h.rooms[streamID]; exists {
				delete(room, client)
				if len(room) == 0 {
					delete(h.rooms, streamID)
				}
			}
		}

		log.Info().Str("module", "ws").Str("user_id", client.userID).Msg("client unregistered")
	}
}

// Subscribe adds a client to a stream's room
func (h *Hub) Subscribe(client *Client, streamID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.rooms[streamID] == nil {
		h.rooms[streamID] = make(map[*Client]bool)
	}
	h.rooms[streamID][client] = true
	client.streams[streamID] = true
}

// Unsubscribe removes a client from a stream's room
func (h *Hub) Unsubscribe(client *Client, streamID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[streamID]; exists {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, streamID)
		}
	}
	delete(client.streams, streamID)
}

// BroadcastToStream sends a payload to every subscriber of one stream.
// A client whose send buffer is full is disconnected rather than waited on.
func (h *Hub) BroadcastToStream(streamID string, message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[streamID]; exists {
		for client := range room {
			select {
			case client.send <- message:
			default:
				close(client.send)
				delete(h.clients, client)
				delete(room, client)
			}
		}
	}
}

// inboundFrame is what clients may send over the socket.
type inboundFrame struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	Content  string `json:"content,omitempty"`
}

// readPump handles messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("module", "ws").Msg("websocket read error")
			}
			break
		}

		var frame inboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Warn().Err(err).Str("module", "ws").Str("user_id", c.userID).Msg("bad frame")
			continue
		}

		switch frame.Type {
		case "subscribe":
			c.hub.Subscribe(c, frame.StreamID)
		case "unsubscribe":
			c.hub.Unsubscribe(c, frame.StreamID)
		case "chat":
			if c.hub.chatSink == nil {
				continue
			}
			if err := c.hub.chatSink(frame.StreamID, c.userID, c.username, frame.Content); err != nil {
				resp, _ := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
				select {
				case c.send <- resp:
				default:
				}
			}
		default:
			log.Debug().Str("module", "ws").Str("type", frame.Type).Msg("unknown frame type")
		}
	}
}

// writePump handles messages to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warn().Err(err).Str("module", "ws").Msg("websocket write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
