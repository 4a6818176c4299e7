package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by CORS and the token
	},
}

// Client represents a WebSocket client
type Client struct {
	UserID string
	Role   models.Role
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
}

// WebSocketMessage is the envelope for every frame in both directions.
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients, keyed by user.
type Hub struct {
	log        logger.ILogger
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
}

var _ RealtimeSender = (*Hub)(nil)

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]struct{})
			}
			h.clients[client.UserID][client] = struct{}{}
			h.mutex.Unlock()
			h.log.Debug("websocket client connected", logger.String("userId", client.UserID), logger.String("role", string(client.Role)))

		case client := <-h.unregister:
			h.remove(client)
			h.log.Debug("websocket client disconnected", logger.String("userId", client.UserID))

		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.mutex.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; ok {
		delete(set, client)
		close(client.Send)
	}
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
}

// BroadcastToUser sends a raw frame to every connection of a user. Clients
// whose buffer is full are dropped.
func (h *Hub) BroadcastToUser(userID string, message []byte) {
	var slow []*Client

	h.mutex.RLock()
	for client := range h.clients[userID] {
		select {
		case client.Send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		h.log.Warning("dropping slow websocket client", logger.String("userId", userID))
		h.remove(client)
	}
}

func (h *Hub) SendToUser(userID, msgType string, data interface{}) {
	raw, err := json.Marshal(WebSocketMessage{Type: msgType, Data: data})
	if err != nil {
		h.log.Error("error marshaling websocket message", logger.String("type", msgType), logger.Error(err))
		return
	}
	h.BroadcastToUser(userID, raw)
}

// GetConnectedClients returns the number of open connections.
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// HandleWebSocket upgrades the request and attaches the connection to the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID string, role models.Role) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warning("websocket upgrade error", logger.Error(err))
		return
	}

	client := &Client{
		UserID: userID,
		Role:   role,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    h,
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

// readPump only answers pings; all booking commands go through the REST API.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warning("websocket read error", logger.String("userId", c.UserID), logger.Error(err))
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.Hub.SendToUser(c.UserID, "pong", time.Now().UTC())
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
