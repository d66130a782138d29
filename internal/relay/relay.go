// Package relay carries persisted messages between chat instances over the
// pub/sub bus so that each instance's hub can reach its own connections.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

var ErrSubscriptionClosed = errors.New("relay: bus subscription closed")

// LocalHub is the part of the hub the relay delivers into.
type LocalHub interface {
	Publish(roomID string, msg *domain.Message) int
}

// Relay publishes messages on the bus and delivers bus traffic to the
// local hub. Every instance, the publishing one included, receives its
// messages back from the bus.
type Relay struct {
	ps         pubsub.PubSub
	hub        LocalHub
	instanceID string
}

func New(ps pubsub.PubSub, hub LocalHub, instanceID string) *Relay {
	return &Relay{ps: ps, hub: hub, instanceID: instanceID}
}

// Broadcast publishes msg for all instances. When the bus refuses it, the
// message still reaches this instance's subscribers.
func (r *Relay) Broadcast(ctx context.Context, msg *domain.Message) {
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(pubsub.EventMessageCreated, msg.RoomID, msg)
	if err == nil {
		event.Origin = r.instanceID
		err = r.ps.Publish(ctx, pubsub.RoomMessagesChannel(msg.RoomID), event)
	}
	if err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, msg.RoomID).Str(log.FieldMessageID, msg.ID).
			Msg("bus publish failed, delivering locally only")
		r.hub.Publish(msg.RoomID, msg)
	}
}

// Run delivers bus events to the local hub until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	events, err := r.ps.SubscribePattern(ctx, pubsub.PatternRoomMessages)
	if err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("instance", r.instanceID).Msg("relay subscribed to room messages")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			r.deliver(ctx, event)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, event *pubsub.Event) {
	l := log.Ctx(ctx)

	if event.Type != pubsub.EventMessageCreated {
		l.Debug().Str("type", event.Type).Msg("ignoring bus event")
		return
	}

	var msg domain.Message
	if err := event.UnmarshalPayload(&msg); err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, event.RoomID).Msg("dropping undecodable message event")
		return
	}
	if msg.RoomID == "" {
		msg.RoomID = event.RoomID
	}

	n := r.hub.Publish(msg.RoomID, &msg)
	l.Debug().Str(log.FieldRoomID, msg.RoomID).Int64(log.FieldSeq, msg.Seq).
		Str("origin", event.Origin).Int("delivered", n).Msg("relayed message")
}
