package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

type fakeHub struct {
	mu   sync.Mutex
	got  []domain.Message
	seen chan struct{}
}

func newFakeHub() *fakeHub {
	return &fakeHub{seen: make(chan struct{}, 16)}
}

func (h *fakeHub) Publish(roomID string, msg *domain.Message) int {
	h.mu.Lock()
	h.got = append(h.got, *msg)
	h.mu.Unlock()
	h.seen <- struct{}{}
	return 1
}

func (h *fakeHub) wait(t *testing.T) domain.Message {
	t.Helper()
	select {
	case <-h.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.got[len(h.got)-1]
}

type failingPubSub struct{ pubsub.PubSub }

func (failingPubSub) Publish(context.Context, string, *pubsub.Event) error {
	return errors.New("bus down")
}

func testMessage() *domain.Message {
	return &domain.Message{ID: "01HX", RoomID: "room-1", Seq: 7, SenderID: "alice", Content: "hi", CreatedAt: time.Now().UTC()}
}

func TestRelayDeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newBus := func() pubsub.PubSub {
		ps := pubsub.NewRedisPubSubFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		t.Cleanup(func() { ps.Close() })
		return ps
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, hubB := newFakeHub(), newFakeHub()
	a := New(newBus(), hubA, "instance-a")
	b := New(newBus(), hubB, "instance-b")

	errs := make(chan error, 2)
	go func() { errs <- a.Run(ctx) }()
	go func() { errs <- b.Run(ctx) }()

	// Run subscribes asynchronously; wait until both pattern subscriptions exist.
	require.Eventually(t, func() bool {
		return mr.PubSubNumPat() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	a.Broadcast(ctx, testMessage())

	for _, h := range []*fakeHub{hubA, hubB} {
		got := h.wait(t)
		require.Equal(t, "room-1", got.RoomID)
		require.EqualValues(t, 7, got.Seq)
		require.Equal(t, "hi", got.Content)
	}

	cancel()
	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}
}

func TestRelayFallsBackToLocalDelivery(t *testing.T) {
	h := newFakeHub()
	r := New(failingPubSub{}, h, "instance-a")

	r.Broadcast(context.Background(), testMessage())

	got := h.wait(t)
	require.Equal(t, "01HX", got.ID)
}
