package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	service        service.ChatService
	authMiddleware *middleware.AuthMiddleware
	wsCfg          config.WebSocketConfig
	requestTimeout time.Duration
}

func NewWSHandler(svc service.ChatService, authMiddleware *middleware.AuthMiddleware, wsCfg config.WebSocketConfig, requestTimeout time.Duration) *WSHandler {
	return &WSHandler{
		service:        svc,
		authMiddleware: authMiddleware,
		wsCfg:          wsCfg,
		requestTimeout: requestTimeout,
	}
}

// RegisterRoutes mounts the upgrade endpoint. Browsers cannot set headers
// on a WebSocket handshake, so the token may also come as ?token=.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/v1/ws", h.authMiddleware.RequireAuth(), h.HandleWebSocket)
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := log.Ctx(c.Request.Context())
	userID := middleware.GetUserID(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), userID, conn, h.wsCfg)

	// The request context ends with the handshake; frames get their own.
	clientLog := log.L().With().Str(log.FieldClientID, client.ID).Str(log.FieldUserID, userID).Logger()
	base := log.WithLogger(context.Background(), clientLog)

	if !h.service.Connect(base, client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	client.SendMessage(&domain.ConnectedMessage{
		Type:     domain.MsgTypeConnected,
		ClientID: client.ID,
		UserID:   userID,
	})

	go client.WritePump()
	go client.ReadPump(
		func(cl *hub.Client, message []byte) { h.handleMessage(base, cl, message) },
		func(cl *hub.Client) { h.service.Disconnect(base, cl) },
	)
}

func (h *WSHandler) handleMessage(base context.Context, client *hub.Client, message []byte) {
	var msgBase domain.BaseMessage
	if err := json.Unmarshal(message, &msgBase); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := base
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, h.requestTimeout)
		defer cancel()
	}
	l := log.Ctx(ctx)

	switch msgBase.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_room message"))
			return
		}
		if err := h.service.JoinLive(ctx, client, msg.RoomID); err != nil {
			l.Debug().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("live join refused")
			client.SendMessage(errorMessage(err))
			return
		}
		client.SendMessage(&domain.RoomJoinedMessage{Type: domain.MsgTypeRoomJoined, RoomID: msg.RoomID})

	case domain.MsgTypeLeaveRoom:
		var msg domain.LeaveRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave_room message"))
			return
		}
		h.service.LeaveLive(ctx, client, msg.RoomID)
		client.SendMessage(&domain.RoomLeftMessage{Type: domain.MsgTypeRoomLeft, RoomID: msg.RoomID})

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid chat_message"))
			return
		}
		sent, err := h.service.SendMessage(ctx, msg.RoomID, client.UserID, msg.Content)
		if err != nil {
			l.Debug().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("chat message rejected")
			client.SendMessage(errorMessage(err))
			return
		}
		client.SendMessage(&domain.MessageAcceptedMessage{
			Type:      domain.MsgTypeMessageAccepted,
			RoomID:    sent.RoomID,
			MessageID: sent.ID,
			Seq:       sent.Seq,
		})

	case domain.MsgTypePing:
		client.SendMessage(&domain.PongMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

// errorMessage keeps storage and internal details off the wire.
func errorMessage(err error) *domain.ErrorMessage {
	switch domain.KindOf(err) {
	case domain.KindStorage:
		return domain.NewErrorMessage(domain.ErrCodeUnavailable, "storage unavailable")
	case domain.KindTimeout:
		return domain.NewErrorMessage(domain.ErrCodeTimeout, "request timed out")
	case domain.KindUnknown:
		return domain.NewErrorMessage(domain.ErrCodeInternalError, "internal error")
	default:
		return domain.NewErrorMessage(domain.ErrorCode(err), err.Error())
	}
}
