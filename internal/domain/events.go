package domain

import "errors"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom    = "join_room"
	MsgTypeLeaveRoom   = "leave_room"
	MsgTypeChatMessage = "chat_message"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeConnected       = "connected"
	MsgTypeRoomJoined      = "room_joined"
	MsgTypeRoomLeft        = "room_left"
	MsgTypeMessage         = "message"
	MsgTypeMessageAccepted = "message_accepted"
	MsgTypeError           = "error"
	MsgTypePong            = "pong"
)

// Error codes shared by the REST and WebSocket surfaces.
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "ROOM_NOT_FOUND"
	ErrCodeNameTaken     = "ROOM_NAME_TAKEN"
	ErrCodeAlreadyMember = "ALREADY_MEMBER"
	ErrCodeNotMember     = "NOT_MEMBER"
	ErrCodeValidation    = "VALIDATION_FAILED"
	ErrCodeUnavailable   = "STORAGE_UNAVAILABLE"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ErrorCode picks the wire code for a domain error.
func ErrorCode(err error) string {
	switch KindOf(err) {
	case KindNotFound:
		return ErrCodeNotFound
	case KindConflict:
		if errors.Is(err, ErrAlreadyMember) {
			return ErrCodeAlreadyMember
		}
		return ErrCodeNameTaken
	case KindForbidden:
		return ErrCodeNotMember
	case KindValidation:
		return ErrCodeValidation
	case KindStorage:
		return ErrCodeUnavailable
	case KindTimeout:
		return ErrCodeTimeout
	default:
		return ErrCodeInternalError
	}
}

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type JoinRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type LeaveRoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type ChatMessageIn struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// Server -> Client messages

type ConnectedMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
}

type RoomJoinedMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type RoomLeftMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// MessageEvent is the live delivery of a persisted message.
type MessageEvent struct {
	Type    string  `json:"type"`
	RoomID  string  `json:"room_id"`
	Message Message `json:"message"`
}

type MessageAcceptedMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	Seq       int64  `json:"seq"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewMessageEvent(msg *Message) *MessageEvent {
	return &MessageEvent{Type: MsgTypeMessage, RoomID: msg.RoomID, Message: *msg}
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
