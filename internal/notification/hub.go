package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pot-code/progress-engine/internal/domain"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 3 * time.Second,
}

var (
	writeWait    = 10 * time.Second
	pongWait     = 30 * time.Second
	pingInterval = pongWait * 9 / 10
)

// DefaultClientBuffer pending messages per connection before it starts dropping
const DefaultClientBuffer = 16

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes notifications to the live websocket connections of their user
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	buffer  int
	logger  *zap.Logger
}

var _ domain.Notifier = &Hub{}

// NewHub ...
func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultClientBuffer
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		buffer:  buffer,
		logger:  logger,
	}
}

// Serve upgrade the request and keep the connection until the peer leaves. It returns once the
// connection is registered.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn, send: make(chan []byte, h.buffer)}
	h.register(userID, c)
	go h.writeRoutine(c)
	go h.readRoutine(userID, c)
	return nil
}

// Notify queue n on every connection of its user, a full connection misses the message
func (h *Hub) Notify(ctx context.Context, n *domain.Notification) error {
	msg, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for c := range h.clients[n.UserID] {
		select {
		case c.send <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("notification %s dropped on %d slow connection(s)", n.ID, dropped)
	}
	return nil
}

// Connections live connections of userID
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) register(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// readRoutine the stream is push only, reads just keep the pong deadline moving
func (h *Hub) readRoutine(userID string, c *client) {
	defer func() {
		h.unregister(userID, c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", zap.String("user.id", userID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeRoutine(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
