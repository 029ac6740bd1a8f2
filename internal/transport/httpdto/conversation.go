package httpdto

import (
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
)

type CreateConversationRequest struct {
	CustomerID string `json:"customer_id"`
	SalonID    string `json:"salon_id"`
	Context    string `json:"context"`
	BookingID  string `json:"booking_id,omitempty"`
}

type ConversationResponse struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	SalonID         uuid.UUID  `json:"salon_id"`
	Context         string     `json:"context"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty"`
	LastMessageText string     `json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	CustomerUnread  int        `json:"customer_unread"`
	StaffUnread     int        `json:"staff_unread"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Created         bool       `json:"created,omitempty"`
}

func ConversationResponseFrom(c conversation.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:              c.ID,
		CustomerID:      c.CustomerID,
		SalonID:         c.SalonID,
		Context:         string(c.Context),
		LastMessageText: c.LastMessageText.String,
		CustomerUnread:  c.CustomerUnread,
		StaffUnread:     c.StaffUnread,
		Status:          string(c.Status),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.BookingID.Valid {
		id := c.BookingID.UUID
		resp.BookingID = &id
	}
	if c.LastMessageAt.Valid {
		t := c.LastMessageAt.Time
		resp.LastMessageAt = &t
	}
	return resp
}

type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

type MarkReadResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReadAt         time.Time `json:"read_at"`
}
