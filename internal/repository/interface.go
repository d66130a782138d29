package repository

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

// RoomRepository persists rooms and their membership sets.
// Lookups of a missing room return domain.ErrRoomNotFound; other failures
// match domain.ErrStorageFailure.
type RoomRepository interface {
	// Create inserts the room and its creator's membership in one
	// transaction. room.ID and room.Members are filled in on success.
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	// List returns every room in creation order.
	List(ctx context.Context) ([]domain.Room, error)
	ListByMember(ctx context.Context, userID string) ([]domain.Room, error)
	// AddMember returns domain.ErrAlreadyMember when userID already belongs
	// to the room.
	AddMember(ctx context.Context, roomID, userID string, joinedAt time.Time) (*domain.Room, error)
	// Members returns identities in join order.
	Members(ctx context.Context, roomID string) ([]string, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// MessageRepository is the durable, per-room ordered message store.
type MessageRepository interface {
	// Append stores msg once the write is acknowledged. It returns
	// domain.ErrDuplicateSeq when (RoomID, Seq) is already taken.
	Append(ctx context.Context, msg *domain.Message) error
	// LastSeq returns the highest stored sequence number, 0 for an empty room.
	LastSeq(ctx context.Context, roomID string) (int64, error)
	// List returns messages with Seq > afterSeq in ascending order. A
	// non-positive limit returns all of them.
	List(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.Message, error)
	Close() error
}

// Models lists the GORM models to migrate.
func Models() []interface{} {
	return []interface{}{&domain.RoomModel{}, &domain.RoomMemberModel{}, &domain.MessageModel{}}
}
