package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Client is one live connection. Its outbound queue is bounded and drained
// by WritePump; enqueueing never blocks.
type Client struct {
	ID     string
	UserID string

	conn   *websocket.Conn
	config config.WebSocketConfig

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// rooms maps each subscribed room to its subscription time. It is
	// guarded by the owning Hub's lock.
	rooms map[string]time.Time
}

func NewClient(id, userID string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 256
	}
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
		config: cfg,
		send:   make(chan []byte, size),
		rooms:  make(map[string]time.Time),
	}
}

// Outbound exposes the queue; it is closed when the client is unregistered.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// enqueue reports false when the queue is full or already closed.
func (c *Client) enqueue(data []byte) (ok, full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- data:
		return true, false
	default:
		return false, true
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SendMessage queues a direct reply to this client only.
func (c *Client) SendMessage(message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		return false
	}
	ok, full := c.enqueue(data)
	if full {
		l := log.L()
		l.Warn().Str(log.FieldClientID, c.ID).Msg("outbound queue full, reply dropped")
	}
	return ok
}

// ReadPump reads frames until the connection fails, then calls onClose.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			return
		}
		handler(c, message)
	}
}

// WritePump drains the outbound queue and keeps the connection alive with
// pings. It exits when the queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
