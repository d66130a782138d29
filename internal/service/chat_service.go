package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type chatServiceImpl struct {
	hub         *hub.Hub
	rooms       RoomService
	messages    MessageService
	broadcaster Broadcaster
}

// NewChatService wires the message log to live delivery. A nil broadcaster
// delivers through h directly.
func NewChatService(h *hub.Hub, rooms RoomService, messages MessageService, b Broadcaster) ChatService {
	if b == nil {
		b = h
	}
	return &chatServiceImpl{
		hub:         h,
		rooms:       rooms,
		messages:    messages,
		broadcaster: b,
	}
}

// SendMessage appends the message and then hands it to the broadcaster.
// Nothing is published unless the append succeeded, and a delivery problem
// never turns a stored message into an error.
func (s *chatServiceImpl) SendMessage(ctx context.Context, roomID, sender, content string) (*domain.Message, error) {
	msg, err := s.messages.Append(ctx, roomID, sender, content)
	if err != nil {
		return nil, err
	}

	// The message is durable; a caller deadline must not cut delivery short.
	s.broadcaster.Broadcast(context.WithoutCancel(ctx), msg)

	audit.LogWithDetail(ctx, audit.ActionSendMessage, sender, roomID, msg.ID, "message sent")
	return msg, nil
}

func (s *chatServiceImpl) Connect(ctx context.Context, client *hub.Client) bool {
	if !s.hub.Register(client) {
		return false
	}
	audit.LogWithDetail(ctx, audit.ActionConnect, client.UserID, client.ID, "", "client connected")
	return true
}

// JoinLive subscribes client to roomID. Only members may follow a room.
func (s *chatServiceImpl) JoinLive(ctx context.Context, client *hub.Client, roomID string) error {
	if err := s.rooms.CheckMember(ctx, roomID, client.UserID); err != nil {
		if errors.Is(err, domain.ErrNotMember) {
			return domain.ErrForbidden
		}
		return err
	}

	s.hub.Subscribe(client, roomID)

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, roomID).
		Int("subscribers", s.hub.RoomSubscriberCount(roomID)).Msg("live subscription added")
	audit.Log(ctx, audit.ActionLiveJoin, client.UserID, roomID, "following room")
	return nil
}

func (s *chatServiceImpl) LeaveLive(ctx context.Context, client *hub.Client, roomID string) {
	s.hub.Unsubscribe(client, roomID)
	audit.Log(ctx, audit.ActionLiveLeave, client.UserID, roomID, "stopped following room")
}

// Disconnect drops every subscription of client. Safe to call more than once.
func (s *chatServiceImpl) Disconnect(ctx context.Context, client *hub.Client) {
	s.hub.Unregister(client)
	audit.Log(ctx, audit.ActionDisconnect, client.UserID, client.ID, "client disconnected")
}
