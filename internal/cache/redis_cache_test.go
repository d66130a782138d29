package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

func TestRedisRoomCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisRoomCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "chat:room")
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "r1")
	require.ErrorIs(t, err, ErrCacheMiss)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	room := &domain.Room{ID: "r1", Name: "general", CreatedBy: "alice", CreatedAt: created, Members: []string{"alice"}}
	require.NoError(t, c.Set(ctx, InfoOf(room), time.Minute))
	require.True(t, mr.Exists("chat:room:id:r1"))

	got, err := c.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "general", got.Name)
	require.True(t, created.Equal(got.CreatedAt))

	rebuilt := got.Room([]string{"alice", "bob"})
	require.Equal(t, []string{"alice", "bob"}, rebuilt.Members)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "r1")
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, InfoOf(room), time.Minute))
	require.NoError(t, c.Delete(ctx, "r1"))
	_, err = c.Get(ctx, "r1")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestNoopRoomCache(t *testing.T) {
	var c RoomCache = NoopRoomCache{}
	require.NoError(t, c.Set(context.Background(), RoomInfo{ID: "r1"}, time.Minute))
	_, err := c.Get(context.Background(), "r1")
	require.ErrorIs(t, err, ErrCacheMiss)
}
