package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Hub tracks which live clients are subscribed to which rooms and fans
// persisted messages out to them. It is created at startup and torn down
// by Close or by cancelling the context given to Run.
type Hub struct {
	clients map[string]*Client            // clientID -> client
	rooms   map[string]map[string]*Client // roomID -> clientID -> client
	closed  bool
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Run blocks until ctx is done and then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.Close()
	return nil
}

// Register adds a connected client. It reports false once the hub is closed.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		client.close()
		return false
	}
	h.clients[client.ID] = client

	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldUserID, client.UserID).Msg("client registered")
	return true
}

// Unregister drops every subscription of client and closes its outbound
// queue. Safe to call repeatedly.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client.ID]
	if known {
		h.unsubscribeAllLocked(client)
		delete(h.clients, client.ID)
	}
	h.mu.Unlock()

	client.close()

	if known {
		l := log.L()
		l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")
	}
}

// Subscribe attaches client to roomID. Subscribing twice is a no-op.
// Unregistered clients are ignored.
func (h *Hub) Subscribe(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[string]*Client)
		h.rooms[roomID] = subs
	}
	if _, ok := subs[client.ID]; ok {
		return
	}
	subs[client.ID] = client
	client.rooms[roomID] = time.Now().UTC()
}

// Unsubscribe detaches client from roomID.
func (h *Hub) Unsubscribe(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, roomID)
}

// UnsubscribeAll detaches client from every room but keeps it registered.
func (h *Hub) UnsubscribeAll(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeAllLocked(client)
}

func (h *Hub) unsubscribeAllLocked(client *Client) {
	for roomID := range client.rooms {
		h.unsubscribeLocked(client, roomID)
	}
}

func (h *Hub) unsubscribeLocked(client *Client, roomID string) {
	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}

// Publish queues msg for every client subscribed to roomID at the time of
// the call and returns how many accepted it. Clients whose queue is full
// are disconnected; they never delay the others.
func (h *Hub) Publish(roomID string, msg *domain.Message) int {
	data, err := json.Marshal(domain.NewMessageEvent(msg))
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to encode message event")
		return 0
	}

	var (
		delivered int
		slow      []*Client
	)

	h.mu.RLock()
	for _, client := range h.rooms[roomID] {
		ok, full := client.enqueue(data)
		if ok {
			delivered++
		} else if full {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		l := log.L()
		l.Warn().
			Str(log.FieldClientID, client.ID).
			Str(log.FieldUserID, client.UserID).
			Str(log.FieldRoomID, roomID).
			Int64(log.FieldSeq, msg.Seq).
			Msg("outbound queue full, disconnecting slow client")
		h.Unregister(client)
	}

	return delivered
}

// Broadcast lets the hub act as the local delivery path.
func (h *Hub) Broadcast(ctx context.Context, msg *domain.Message) {
	n := h.Publish(msg.RoomID, msg)
	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldRoomID, msg.RoomID).Int64(log.FieldSeq, msg.Seq).Int("delivered", n).Msg("message published")
}

// IsSubscribed reports whether client is attached to roomID.
func (h *Hub) IsSubscribed(client *Client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][client.ID]
	return ok
}

// SubscribedAt returns when client subscribed to roomID.
func (h *Hub) SubscribedAt(client *Client, roomID string) (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[roomID][client.ID]; !ok {
		return time.Time{}, false
	}
	return client.rooms[roomID], true
}

// RoomSubscriberCount returns the number of clients attached to roomID.
func (h *Hub) RoomSubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unregisters every client and rejects new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		c.rooms = make(map[string]time.Time)
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
	h.closed = true
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	l := log.L()
	l.Info().Int("clients", len(clients)).Msg("hub closed")
}
