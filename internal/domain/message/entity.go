package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
)

// Type is the message payload kind.
type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeFile   Type = "file"
	TypeSystem Type = "system"
)

// Message represents the messages table. ID is the durable, server-assigned
// identity; ProvisionalID is the client-generated identity that exists only
// until reconciliation. AcceptedAt is authoritative for ordering; SentAt is
// the sender's clock and advisory only.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	SenderRole     conversation.Role
	Type           Type
	Body           sql.NullString
	AttachmentKey  sql.NullString
	ProvisionalID  string
	SentAt         sql.NullTime
	AcceptedAt     time.Time
	DeliveredAt    sql.NullTime
	ReadAt         sql.NullTime
}

func (Message) TableName() string {
	return "messages"
}
