package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *RedisPubSub {
	t.Helper()
	mr := miniredis.RunT(t)
	ps := NewRedisPubSubFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { ps.Close() })
	return ps
}

func TestRedisPubSubPattern(t *testing.T) {
	ps := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := ps.SubscribePattern(ctx, PatternRoomMessages)
	require.NoError(t, err)

	ev, err := NewEvent(EventMessageCreated, "room-1", map[string]string{"content": "hi"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, RoomMessagesChannel("room-1"), ev))

	select {
	case got := <-events:
		require.Equal(t, EventMessageCreated, got.Type)
		require.Equal(t, "room-1", got.RoomID)
		var payload map[string]string
		require.NoError(t, got.UnmarshalPayload(&payload))
		require.Equal(t, "hi", payload["content"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestRedisPubSubUnsubscribeClosesChannel(t *testing.T) {
	ps := newTestRedis(t)
	ctx := context.Background()

	events, err := ps.Subscribe(ctx, RoomMessagesChannel("room-2"))
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, RoomMessagesChannel("room-2")))

	select {
	case _, ok := <-events:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestChannelToTopicAndKey(t *testing.T) {
	topic, key, err := channelToTopicAndKey(RoomMessagesChannel("abc"))
	require.NoError(t, err)
	require.Equal(t, "chat-messages", topic)
	require.Equal(t, "abc", key)

	topic, err = patternToTopic(PatternRoomMessages)
	require.NoError(t, err)
	require.Equal(t, "chat-messages", topic)

	_, _, err = channelToTopicAndKey("chat:abc")
	require.Error(t, err)
	_, _, err = channelToTopicAndKey("chat:room::messages")
	require.Error(t, err)
}

func TestNewPubSubRejectsUnknownDriver(t *testing.T) {
	_, err := NewPubSub(Config{Driver: "carrier-pigeon"})
	require.Error(t, err)
}
