package domain

import "time"

// RoomModel is the GORM model for the rooms table. Ordinal records
// creation order independently of clock resolution.
type RoomModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Ordinal   int64     `gorm:"uniqueIndex;not null"`
	CreatedBy string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// RoomMemberModel is one membership row, keyed by (room_id, user_id).
type RoomMemberModel struct {
	RoomID   string    `gorm:"type:varchar(36);primaryKey"`
	UserID   string    `gorm:"type:varchar(64);primaryKey;index"`
	Position int64     `gorm:"not null"`
	JoinedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for RoomMemberModel.
func (RoomMemberModel) TableName() string {
	return "room_members"
}

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID        string    `gorm:"type:varchar(26);primaryKey"`
	RoomID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_messages_room_seq,priority:1"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_messages_room_seq,priority:2"`
	SenderID  string    `gorm:"type:varchar(64);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts RoomModel to a Room with the given members.
func (m *RoomModel) ToDomain(members []string) *Room {
	return &Room{
		ID:        m.ID,
		Name:      m.Name,
		CreatedBy: m.CreatedBy,
		Members:   members,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// ToDomain converts MessageModel to Message.
func (m *MessageModel) ToDomain() Message {
	return Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Seq:       m.Seq,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// MessageToModel converts Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Seq:       msg.Seq,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}
