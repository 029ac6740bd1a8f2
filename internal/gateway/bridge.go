package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salon-chat/internal/events"
	"salon-chat/internal/services"
)

// Bridge pumps room envelopes from the bus into the hub. Every gateway node
// runs one; a node only fans an envelope out to the connections it holds, so
// the union across nodes covers the room.
type Bridge struct {
	hub        *Hub
	subscriber events.Subscriber
	msgService *services.MessageService
	logger     *zap.Logger
}

func NewBridge(hub *Hub, subscriber events.Subscriber, msgService *services.MessageService) *Bridge {
	return &Bridge{
		hub:        hub,
		subscriber: subscriber,
		msgService: msgService,
		logger:     zap.L().With(zap.String("component", "bridge")),
	}
}

// Run blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, func(env events.Envelope) {
		b.dispatch(ctx, env)
	})
}

func (b *Bridge) dispatch(ctx context.Context, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("envelope marshal failed", zap.Error(err))
		return
	}

	if env.SuppressOrigin {
		b.hub.BroadcastRoomExcept(env.ConversationID, env.OriginID, data)
		return
	}

	b.hub.BroadcastRoom(env.ConversationID, data)

	if env.Event == events.EventMessageNew {
		b.stampDelivered(ctx, env)
	}
}

// stampDelivered marks a message delivered once it has reached at least one
// counterpart connection on this node. A node that holds no counterpart
// connection leaves the stamp to the node that does.
func (b *Bridge) stampDelivered(ctx context.Context, env events.Envelope) {
	var payload events.MessagePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		b.logger.Error("message payload unmarshal failed", zap.Error(err))
		return
	}
	if b.hub.CountRoomExcept(env.ConversationID, payload.SenderID) == 0 {
		return
	}
	if err := b.msgService.MarkDelivered(ctx, env.ConversationID, []uuid.UUID{payload.ID}); err != nil {
		b.logger.Error("delivered stamp failed",
			zap.String("message_id", payload.ID.String()),
			zap.Error(err))
	}
}
