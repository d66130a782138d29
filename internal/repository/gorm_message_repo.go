package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// GormMessageRepository implements MessageRepository on a relational store.
// The unique index on (room_id, seq) backs the per-room ordering.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Append inserts a message; the insert commits before Append returns.
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(domain.MessageToModel(msg)).Error; err != nil {
		holder, found := r.seqHolder(ctx, msg.RoomID, msg.Seq)
		if found && holder == msg.ID {
			// The insert landed even though the driver reported an error.
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, msg.RoomID).Str(log.FieldMessageID, msg.ID).Msg("append reported an error but the row is stored")
			return nil
		}
		if found || errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateSeq
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Int64(log.FieldSeq, msg.Seq).Msg("failed to append message")
		return domain.StorageError("append message", err)
	}
	return nil
}

// LastSeq returns the highest sequence number stored for roomID.
func (r *GormMessageRepository) LastSeq(ctx context.Context, roomID string) (int64, error) {
	var last int64
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, domain.StorageError("last seq", err)
	}
	return last, nil
}

// List returns messages after afterSeq in ascending sequence order.
func (r *GormMessageRepository) List(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.Message, error) {
	query := r.db.WithContext(ctx).
		Where("room_id = ? AND seq > ?", roomID, afterSeq).
		Order("seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []domain.MessageModel
	if err := query.Find(&models).Error; err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		return nil, domain.StorageError("list messages", err)
	}

	messages := make([]domain.Message, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain()
	}
	return messages, nil
}

// seqHolder returns the ID of the message stored at (roomID, seq). It also
// covers drivers that do not translate constraint errors.
func (r *GormMessageRepository) seqHolder(ctx context.Context, roomID string, seq int64) (string, bool) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("room_id = ? AND seq = ?", roomID, seq).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Close is a no-op; the connection pool is shared with the room repository.
func (r *GormMessageRepository) Close() error {
	return nil
}
