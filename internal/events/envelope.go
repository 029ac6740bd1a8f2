package events

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
)

// Envelope is the wire frame for every server->client event and for
// cross-node fan-out over the Redis bus. OriginID identifies the
// participant the event originated from, where sender suppression applies
// (typing:update only).
type Envelope struct {
	Event          string          `json:"event"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	OriginID       uuid.UUID       `json:"origin_id,omitempty"`
	SuppressOrigin bool            `json:"suppress_origin,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload"`
}

func NewEnvelope(event string, conversationID uuid.UUID, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Event:          event,
		ConversationID: conversationID,
		OccurredAt:     time.Now(),
		Payload:        data,
	}, nil
}

// MessagePayload is the full durable message as it travels on message:new.
// ProvisionalID is included so the sending client can reconcile its
// optimistic entry from the echo alone.
type MessagePayload struct {
	ID             uuid.UUID         `json:"id"`
	ConversationID uuid.UUID         `json:"conversation_id"`
	SenderID       uuid.UUID         `json:"sender_id"`
	SenderRole     conversation.Role `json:"sender_role"`
	Type           message.Type      `json:"type"`
	Body           string            `json:"body,omitempty"`
	AttachmentKey  string            `json:"attachment_key,omitempty"`
	ProvisionalID  string            `json:"provisional_id,omitempty"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	AcceptedAt     time.Time         `json:"accepted_at"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
	ReadAt         *time.Time        `json:"read_at,omitempty"`
}

func MessagePayloadFrom(m message.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		Type:           m.Type,
		Body:           m.Body.String,
		AttachmentKey:  m.AttachmentKey.String,
		ProvisionalID:  m.ProvisionalID,
		SentAt:         nullTimePtr(m.SentAt),
		AcceptedAt:     m.AcceptedAt,
		DeliveredAt:    nullTimePtr(m.DeliveredAt),
		ReadAt:         nullTimePtr(m.ReadAt),
	}
}

// AckPayload reconciles an already-displayed provisional message; sent only
// to the original sender's connection.
type AckPayload struct {
	ProvisionalID string    `json:"provisional_id"`
	MessageID     uuid.UUID `json:"message_id"`
}

// TypingPayload travels on typing:update.
type TypingPayload struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	IsTyping      bool      `json:"is_typing"`
}

// TypingSnapshotPayload travels on typing:active after a join.
type TypingSnapshotPayload struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

// ReadPayload travels on message:read. Recipients treat it as "the reader
// has now seen everything sent before ReadAt".
type ReadPayload struct {
	ReaderID uuid.UUID `json:"reader_id"`
	ReadAt   time.Time `json:"read_at"`
}

// ErrorPayload reports a failed message:send to its sender so the client
// never promotes the pending entry.
type ErrorPayload struct {
	ProvisionalID string `json:"provisional_id"`
	Reason        string `json:"reason"`
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
