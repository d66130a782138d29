package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions for the chat bus.
const (
	// ChannelRoomMessages carries persisted messages of one room.
	ChannelRoomMessages = "chat:room:%s:messages"

	// PatternRoomMessages matches ChannelRoomMessages for every room.
	PatternRoomMessages = "chat:room:*:messages"
)

// Event types.
const (
	EventMessageCreated = "message_created"
)

// RoomMessagesChannel returns the channel name for a room's messages.
func RoomMessagesChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomMessages, roomID)
}

// channelToTopicAndKey converts a Redis-style channel to a Kafka topic and
// message key.
//
//	"chat:room:ROOM123:messages" → topic: "chat-messages", key: "ROOM123"
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "room" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	topic = parts[0] + "-" + strings.ReplaceAll(parts[3], "_", "-")
	return topic, parts[2], nil
}

// patternToTopic converts a subscribe pattern to a Kafka topic.
//
//	"chat:room:*:messages" → "chat-messages"
func patternToTopic(pattern string) (string, error) {
	topic, _, err := channelToTopicAndKey(strings.ReplaceAll(pattern, "*", "_placeholder_"))
	return topic, err
}
