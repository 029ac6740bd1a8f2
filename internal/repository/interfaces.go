package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetOpenByTuple(ctx context.Context, customerID, salonID uuid.UUID, convCtx conversation.Context) (conversation.Conversation, error)
	ListForParticipant(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]conversation.Conversation, error)

	TouchOnAppend(ctx context.Context, id uuid.UUID, preview string, senderRole conversation.Role, at time.Time) error
	MarkRead(ctx context.Context, id uuid.UUID, readerRole conversation.Role) error
	Archive(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	Insert(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	GetByProvisional(ctx context.Context, conversationID, senderID uuid.UUID, provisionalID string) (message.Message, error)

	ListBackward(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error)
	LatestAcceptedAt(ctx context.Context, conversationID uuid.UUID) (time.Time, bool, error)

	MarkDelivered(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, at time.Time) error
	MarkReadUpTo(ctx context.Context, conversationID uuid.UUID, readerRole conversation.Role, upto time.Time) (int64, error)
}
