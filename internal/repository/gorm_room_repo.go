package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new room with its creator as the first member.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	model := &domain.RoomModel{
		ID:        uuid.New().String(),
		Name:      room.Name,
		CreatedBy: room.CreatedBy,
		CreatedAt: room.CreatedAt,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&domain.RoomModel{}).Where("name = ?", model.Name).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return domain.ErrRoomNameTaken
		}

		var last int64
		if err := tx.Model(&domain.RoomModel{}).Select("COALESCE(MAX(ordinal), 0)").Scan(&last).Error; err != nil {
			return err
		}
		model.Ordinal = last + 1

		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Create(&domain.RoomMemberModel{
			RoomID:   model.ID,
			UserID:   model.CreatedBy,
			Position: 1,
			JoinedAt: model.CreatedAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrRoomNameTaken) {
			return err
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && r.nameExists(ctx, model.Name) {
			return domain.ErrRoomNameTaken
		}
		l.Error().Err(err).Str("name", model.Name).Msg("failed to create room in db")
		return domain.StorageError("create room", err)
	}

	room.ID = model.ID
	room.Members = []string{model.CreatedBy}
	l.Debug().Str(log.FieldRoomID, room.ID).Int64("ordinal", model.Ordinal).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID, members included.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var room *domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		room, err = getRoom(tx, id)
		return err
	})
	if err != nil {
		return nil, r.wrap(ctx, "get room", id, err)
	}
	return room, nil
}

// List retrieves all rooms in creation order.
func (r *GormRoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []domain.RoomModel
		if err := tx.Order("ordinal ASC").Find(&models).Error; err != nil {
			return err
		}
		var err error
		rooms, err = withMembers(tx, models)
		return err
	})
	if err != nil {
		return nil, r.wrap(ctx, "list rooms", "", err)
	}
	return rooms, nil
}

// ListByMember retrieves the rooms userID belongs to, in creation order.
func (r *GormRoomRepository) ListByMember(ctx context.Context, userID string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []domain.RoomModel
		err := tx.Where("id IN (?)", tx.Model(&domain.RoomMemberModel{}).Select("room_id").Where("user_id = ?", userID)).
			Order("ordinal ASC").
			Find(&models).Error
		if err != nil {
			return err
		}
		rooms, err = withMembers(tx, models)
		return err
	})
	if err != nil {
		return nil, r.wrap(ctx, "list member rooms", "", err)
	}
	return rooms, nil
}

// AddMember appends userID to the room's member set.
func (r *GormRoomRepository) AddMember(ctx context.Context, roomID, userID string, joinedAt time.Time) (*domain.Room, error) {
	var room *domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := roomExists(tx, roomID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&domain.RoomMemberModel{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrAlreadyMember
		}

		var last int64
		if err := tx.Model(&domain.RoomMemberModel{}).
			Where("room_id = ?", roomID).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error; err != nil {
			return err
		}

		if err := tx.Create(&domain.RoomMemberModel{
			RoomID:   roomID,
			UserID:   userID,
			Position: last + 1,
			JoinedAt: joinedAt,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyMember
			}
			return err
		}

		var err error
		room, err = getRoom(tx, roomID)
		return err
	})
	if err != nil {
		return nil, r.wrap(ctx, "add member", roomID, err)
	}
	return room, nil
}

// Members returns the member identities of a room in join order.
func (r *GormRoomRepository) Members(ctx context.Context, roomID string) ([]string, error) {
	var members []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := roomExists(tx, roomID); err != nil {
			return err
		}
		byRoom, err := membersByRoom(tx, []string{roomID})
		members = byRoom[roomID]
		return err
	})
	if err != nil {
		return nil, r.wrap(ctx, "list members", roomID, err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// IsMember reports membership, failing with ErrRoomNotFound for unknown rooms.
func (r *GormRoomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := roomExists(tx, roomID); err != nil {
			return err
		}
		return tx.Model(&domain.RoomMemberModel{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Count(&count).Error
	})
	if err != nil {
		return false, r.wrap(ctx, "check membership", roomID, err)
	}
	return count > 0, nil
}

func (r *GormRoomRepository) nameExists(ctx context.Context, name string) bool {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.RoomModel{}).Where("name = ?", name).Count(&n).Error
	return err == nil && n > 0
}

// wrap passes domain errors through and marks everything else as a
// storage failure.
func (r *GormRoomRepository) wrap(ctx context.Context, op, roomID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrAlreadyMember):
		return err
	}
	l := log.Ctx(ctx)
	l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to " + op)
	return domain.StorageError(op, err)
}

func roomExists(tx *gorm.DB, roomID string) error {
	var n int64
	if err := tx.Model(&domain.RoomModel{}).Where("id = ?", roomID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func getRoom(tx *gorm.DB, id string) (*domain.Room, error) {
	var model domain.RoomModel
	if err := tx.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	members, err := membersByRoom(tx, []string{id})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(members[id]), nil
}

func withMembers(tx *gorm.DB, models []domain.RoomModel) ([]domain.Room, error) {
	if len(models) == 0 {
		return []domain.Room{}, nil
	}
	ids := make([]string, len(models))
	for i := range models {
		ids[i] = models[i].ID
	}
	members, err := membersByRoom(tx, ids)
	if err != nil {
		return nil, err
	}
	rooms := make([]domain.Room, len(models))
	for i := range models {
		rooms[i] = *models[i].ToDomain(members[models[i].ID])
	}
	return rooms, nil
}

func membersByRoom(tx *gorm.DB, roomIDs []string) (map[string][]string, error) {
	var rows []domain.RoomMemberModel
	if err := tx.Where("room_id IN ?", roomIDs).Order("room_id, position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(roomIDs))
	for _, row := range rows {
		out[row.RoomID] = append(out[row.RoomID], row.UserID)
	}
	return out, nil
}
