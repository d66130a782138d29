package domain

import "time"

// Message is an immutable chat message. Seq orders messages within a room,
// starting at 1 with no gaps.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Seq       int64     `json:"seq"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest represents a send message request.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// HistoryRequest is the optional window of a history read.
type HistoryRequest struct {
	AfterSeq int64 `form:"after_seq" binding:"min=0"`
	Limit    int   `form:"limit" binding:"min=0"`
}

// HistoryResponse represents a slice of a room's message log.
type HistoryResponse struct {
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
	NextSeq  int64     `json:"next_seq,omitempty"`
}
