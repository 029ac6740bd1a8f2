package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Channel naming for the Redis pub/sub bus. One channel per conversation
// room; publish order on a channel is preserved end to end, which is what
// carries the log-append ordering guarantee across gateway nodes.
const channelPrefix = "conversation:"

func ChannelFor(conversationID uuid.UUID) string {
	return channelPrefix + conversationID.String()
}

// ConversationFromChannel reverses ChannelFor.
func ConversationFromChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, handler func(env Envelope)) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, ChannelFor(env.ConversationID), data).Err()
}

type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

// Subscribe blocks until ctx is cancelled, delivering every room envelope
// published on this bus.
func (s *RedisSubscriber) Subscribe(ctx context.Context, handler func(env Envelope)) error {
	sub := s.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			continue
		}
		handler(env)
	}
}
