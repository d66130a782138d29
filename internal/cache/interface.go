package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// RoomInfo is the immutable part of a room. Member sets change on every
// join and are never cached.
type RoomInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// InfoOf extracts the cacheable fields of a room.
func InfoOf(r *domain.Room) RoomInfo {
	return RoomInfo{ID: r.ID, Name: r.Name, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt}
}

// Room rebuilds a room from cached info and a fresh member list.
func (i RoomInfo) Room(members []string) *domain.Room {
	return &domain.Room{ID: i.ID, Name: i.Name, CreatedBy: i.CreatedBy, CreatedAt: i.CreatedAt, Members: members}
}

type RoomCache interface {
	Get(ctx context.Context, roomID string) (*RoomInfo, error)
	Set(ctx context.Context, info RoomInfo, ttl time.Duration) error
	Delete(ctx context.Context, roomIDs ...string) error
	Close() error
}

// NoopRoomCache always misses.
type NoopRoomCache struct{}

func (NoopRoomCache) Get(context.Context, string) (*RoomInfo, error)      { return nil, ErrCacheMiss }
func (NoopRoomCache) Set(context.Context, RoomInfo, time.Duration) error { return nil }
func (NoopRoomCache) Delete(context.Context, ...string) error            { return nil }
func (NoopRoomCache) Close() error                                       { return nil }
