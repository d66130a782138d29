package service

import (
	"context"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
)

// RoomService owns room existence and membership.
type RoomService interface {
	CreateRoom(ctx context.Context, name, creator string) (*domain.Room, error)
	JoinRoom(ctx context.Context, roomID, identity string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	ListUserRooms(ctx context.Context, identity string) ([]domain.Room, error)
	ListMembers(ctx context.Context, roomID string) ([]string, error)
	IsMember(ctx context.Context, roomID, identity string) bool
	// CheckMember returns domain.ErrRoomNotFound or domain.ErrNotMember
	// when identity may not act in the room.
	CheckMember(ctx context.Context, roomID, identity string) error
	// WithMembership runs fn while holding the room's lock, after
	// confirming membership. Joins on the same room wait for fn.
	WithMembership(ctx context.Context, roomID, identity string, fn func(ctx context.Context) error) error
}

// MessageService is the per-room ordered message log.
type MessageService interface {
	Append(ctx context.Context, roomID, sender, content string) (*domain.Message, error)
	History(ctx context.Context, roomID, requester string) ([]domain.Message, error)
	HistoryPage(ctx context.Context, roomID, requester string, afterSeq int64, limit int) (*domain.HistoryResponse, error)
}

// Broadcaster delivers a persisted message to live subscribers. Delivery
// is best effort and never reports an error.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *domain.Message)
}

// ChatService persists then publishes messages, and manages which live
// connections follow which rooms.
type ChatService interface {
	SendMessage(ctx context.Context, roomID, sender, content string) (*domain.Message, error)
	Connect(ctx context.Context, client *hub.Client) bool
	JoinLive(ctx context.Context, client *hub.Client, roomID string) error
	LeaveLive(ctx context.Context, client *hub.Client, roomID string)
	Disconnect(ctx context.Context, client *hub.Client)
}
