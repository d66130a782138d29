package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/locks"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// directoryLockKey serializes room creation. Room IDs are UUIDs and never
// collide with it.
const directoryLockKey = "rooms/directory"

// RoomOptions tunes the room directory.
type RoomOptions struct {
	MaxNameLength int
	CacheTTL      time.Duration
}

type roomServiceImpl struct {
	repo  repository.RoomRepository
	cache cache.RoomCache
	locks *locks.Keyed
	group singleflight.Group
	opts  RoomOptions
	now   func() time.Time
}

// NewRoomService creates a room directory. A nil cache or lock set gets a
// private default.
func NewRoomService(repo repository.RoomRepository, roomCache cache.RoomCache, roomLocks *locks.Keyed, opts RoomOptions) RoomService {
	if roomCache == nil {
		roomCache = cache.NoopRoomCache{}
	}
	if roomLocks == nil {
		roomLocks = locks.NewKeyed()
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = 100
	}
	return &roomServiceImpl{
		repo:  repo,
		cache: roomCache,
		locks: roomLocks,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateRoom creates a room whose only member is its creator.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, name, creator string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > s.opts.MaxNameLength {
		return nil, domain.ErrInvalidRoomName
	}
	if err := validIdentity(creator); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, directoryLockKey)
	if err != nil {
		return nil, err
	}
	defer unlock()

	room := &domain.Room{
		Name:      name,
		CreatedBy: creator,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.InfoOf(room), s.opts.CacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, room.ID).Msg("failed to cache room")
	}
	audit.LogWithDetail(ctx, audit.ActionCreateRoom, creator, room.ID, room.Name, "room created")
	return room, nil
}

// JoinRoom adds identity to the room's member set. The room lock is held so
// that joins and appends on one room are observed in a single order.
func (s *roomServiceImpl) JoinRoom(ctx context.Context, roomID, identity string) (*domain.Room, error) {
	if err := validIdentity(identity); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	room, err := s.repo.AddMember(ctx, roomID, identity, s.now())
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionJoinRoom, identity, roomID, "joined room")
	return room, nil
}

// GetRoom returns one room with its current members.
func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if info, err := s.cache.Get(ctx, roomID); err == nil {
		members, err := s.repo.Members(ctx, roomID)
		if err != nil {
			return nil, err
		}
		return info.Room(members), nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("room cache read failed")
	}

	v, err, _ := s.group.Do(roomID, func() (interface{}, error) {
		room, err := s.repo.GetByID(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, cache.InfoOf(room), s.opts.CacheTTL); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to cache room")
		}
		return room, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing the flight must not share the slice.
	shared := v.(*domain.Room)
	room := *shared
	room.Members = append([]string(nil), shared.Members...)
	return &room, nil
}

// ListRooms returns every room in creation order.
func (s *roomServiceImpl) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.repo.List(ctx)
}

// ListUserRooms returns the rooms identity belongs to.
func (s *roomServiceImpl) ListUserRooms(ctx context.Context, identity string) ([]domain.Room, error) {
	if err := validIdentity(identity); err != nil {
		return nil, err
	}
	return s.repo.ListByMember(ctx, identity)
}

// ListMembers returns the room's members in join order.
func (s *roomServiceImpl) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	return s.repo.Members(ctx, roomID)
}

// IsMember reports membership. Unknown rooms and storage errors read as
// not a member.
func (s *roomServiceImpl) IsMember(ctx context.Context, roomID, identity string) bool {
	ok, err := s.repo.IsMember(ctx, roomID, identity)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("membership check failed")
		}
		return false
	}
	return ok
}

func (s *roomServiceImpl) CheckMember(ctx context.Context, roomID, identity string) error {
	ok, err := s.repo.IsMember(ctx, roomID, identity)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotMember
	}
	return nil
}

func (s *roomServiceImpl) WithMembership(ctx context.Context, roomID, identity string, fn func(ctx context.Context) error) error {
	unlock, err := s.locks.Lock(ctx, roomID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.CheckMember(ctx, roomID, identity); err != nil {
		return err
	}
	return fn(ctx)
}

func validIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return domain.ErrInvalidIdentity
	}
	return nil
}
