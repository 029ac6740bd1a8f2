package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Context is the originating intent of a conversation.
type Context string

const (
	ContextBookingInquiry Context = "booking_inquiry"
	ContextSupport        Context = "support"
)

// Status is the conversation lifecycle state. Conversations are archived,
// never hard-deleted.
type Status string

const (
	StatusOpen     Status = "open"
	StatusArchived Status = "archived"
)

// Role identifies which side of the two-party conversation a participant
// belongs to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleCustomer {
		return RoleStaff
	}
	return RoleCustomer
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleStaff
}

// Conversation represents the conversations table. Exactly one open row
// exists per (customer, salon, context) tuple.
type Conversation struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	SalonID         uuid.UUID
	Context         Context
	BookingID       uuid.NullUUID
	LastMessageText sql.NullString
	LastMessageAt   sql.NullTime
	CustomerUnread  int
	StaffUnread     int
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParticipantRole resolves which role a participant id plays in the
// conversation, or false if the id is not a participant.
func (c Conversation) ParticipantRole(id uuid.UUID) (Role, bool) {
	switch id {
	case c.CustomerID:
		return RoleCustomer, true
	case c.SalonID:
		return RoleStaff, true
	}
	return "", false
}

func (Conversation) TableName() string {
	return "conversations"
}
