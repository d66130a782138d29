package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Handler handles HTTP requests for rooms and messages.
type Handler struct {
	roomService    service.RoomService
	messageService service.MessageService
	chatService    service.ChatService
	authMiddleware *middleware.AuthMiddleware
	requestTimeout time.Duration
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	roomService service.RoomService,
	messageService service.MessageService,
	chatService service.ChatService,
	authMiddleware *middleware.AuthMiddleware,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		roomService:    roomService,
		messageService: messageService,
		chatService:    chatService,
		authMiddleware: authMiddleware,
		requestTimeout: requestTimeout,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1", RequestTimeout(h.requestTimeout))
	{
		// Every room route acts for a verified identity.
		rooms := api.Group("/rooms", h.authMiddleware.RequireAuth())
		{
			rooms.GET("", h.ListRooms)
			rooms.GET("/:id", h.GetRoom)
			rooms.GET("/:id/members", h.ListMembers)

			rooms.POST("", h.CreateRoom)
			rooms.GET("/mine", h.GetMyRooms)
			rooms.POST("/:id/join", h.JoinRoom)
			rooms.GET("/:id/messages", h.History)
			rooms.POST("/:id/messages", h.SendMessage)
		}
	}
}

// RequestTimeout bounds the request context. A non-positive d leaves it
// unbounded.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateRoom creates a room owned by the caller.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(ctx, req.Name, userID)
	if err != nil {
		writeError(c, err, "failed to create room")
		return
	}

	response.Created(c, room.ToResponse())
}

// GetRoom retrieves a room by ID.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()

	room, err := h.roomService.GetRoom(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to get room")
		return
	}

	response.Success(c, room.ToResponse())
}

// ListRooms lists every room in creation order.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()

	rooms, err := h.roomService.ListRooms(ctx)
	if err != nil {
		writeError(c, err, "failed to list rooms")
		return
	}

	response.Success(c, domain.RoomsToResponse(rooms))
}

// GetMyRooms lists the rooms the caller belongs to.
func (h *Handler) GetMyRooms(c *gin.Context) {
	ctx := c.Request.Context()

	rooms, err := h.roomService.ListUserRooms(ctx, middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to get rooms")
		return
	}

	response.Success(c, domain.RoomsToResponse(rooms))
}

func (h *Handler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()

	room, err := h.roomService.JoinRoom(ctx, c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to join room")
		return
	}

	response.Success(c, room.ToResponse())
}

func (h *Handler) ListMembers(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	members, err := h.roomService.ListMembers(ctx, roomID)
	if err != nil {
		writeError(c, err, "failed to list members")
		return
	}

	response.Success(c, domain.MembersResponse{RoomID: roomID, Members: members})
}

// History returns the room's messages. Without query parameters it is the
// full log; after_seq and limit select a page.
func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	roomID := c.Param("id")
	userID := middleware.GetUserID(c)

	var req domain.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind history request")
		response.BadRequest(c, err.Error())
		return
	}

	if req.AfterSeq == 0 && req.Limit == 0 {
		msgs, err := h.messageService.History(ctx, roomID, userID)
		if err != nil {
			writeError(c, err, "failed to load history")
			return
		}
		resp := domain.HistoryResponse{RoomID: roomID, Messages: msgs}
		if n := len(msgs); n > 0 {
			resp.NextSeq = msgs[n-1].Seq
		}
		response.Success(c, resp)
		return
	}

	page, err := h.messageService.HistoryPage(ctx, roomID, userID, req.AfterSeq, req.Limit)
	if err != nil {
		writeError(c, err, "failed to load history")
		return
	}

	response.Success(c, page)
}

// SendMessage stores a message and fans it out to live subscribers.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.chatService.SendMessage(ctx, c.Param("id"), middleware.GetUserID(c), req.Content)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}

	response.Created(c, msg)
}

// writeError maps a service error onto the response envelope. Unexpected
// errors are logged with msg and reported without detail.
func writeError(c *gin.Context, err error, msg string) {
	code := domain.ErrorCode(err)

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		response.Error(c, http.StatusNotFound, code, err.Error())
	case domain.KindConflict:
		response.Error(c, http.StatusConflict, code, err.Error())
	case domain.KindForbidden:
		response.Error(c, http.StatusForbidden, code, err.Error())
	case domain.KindValidation:
		response.Error(c, http.StatusBadRequest, code, err.Error())
	case domain.KindTimeout:
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg(msg)
		response.Timeout(c, "request timed out")
	case domain.KindStorage:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.ServiceUnavailable(c, "storage unavailable")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, msg)
	}
}
