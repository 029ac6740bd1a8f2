package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/repository"
	salon_errors "salon-chat/pkg/errors"
)

type ConversationService struct {
	repo repository.ConversationRepository
}

func NewConversationService(repo repository.ConversationRepository) *ConversationService {
	return &ConversationService{repo: repo}
}

// GetOrCreate returns the open conversation for the (customer, salon,
// context) tuple, creating it on first contact. Concurrent creates converge
// on the partial unique index: the losing insert surfaces as
// ErrAlreadyExists and the winner's row is returned instead.
func (s *ConversationService) GetOrCreate(ctx context.Context, customerID, salonID uuid.UUID, convCtx conversation.Context, bookingID uuid.NullUUID) (conversation.Conversation, bool, error) {
	if customerID == uuid.Nil || salonID == uuid.Nil {
		return conversation.Conversation{}, false, salon_errors.ErrInvalidInput
	}
	if convCtx == "" {
		convCtx = conversation.ContextBookingInquiry
	}

	existing, err := s.repo.GetOpenByTuple(ctx, customerID, salonID, convCtx)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, salon_errors.ErrNotFound) {
		return conversation.Conversation{}, false, err
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:         uuid.New(),
		CustomerID: customerID,
		SalonID:    salonID,
		Context:    convCtx,
		BookingID:  bookingID,
		Status:     conversation.StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, &conv); err != nil {
		if errors.Is(err, salon_errors.ErrAlreadyExists) {
			// Lost the race; the other create owns the tuple now.
			return s.getAfterConflict(ctx, customerID, salonID, convCtx)
		}
		return conversation.Conversation{}, false, err
	}
	return conv, true, nil
}

func (s *ConversationService) getAfterConflict(ctx context.Context, customerID, salonID uuid.UUID, convCtx conversation.Context) (conversation.Conversation, bool, error) {
	conv, err := s.repo.GetOpenByTuple(ctx, customerID, salonID, convCtx)
	if err != nil {
		return conversation.Conversation{}, false, err
	}
	return conv, false, nil
}

func (s *ConversationService) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	return s.repo.GetByID(ctx, id)
}

// VerifyParticipant loads the conversation and checks the caller is one of
// its two fixed participants.
func (s *ConversationService) VerifyParticipant(ctx context.Context, conversationID, participantID uuid.UUID) (conversation.Conversation, conversation.Role, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, "", err
	}
	role, ok := conv.ParticipantRole(participantID)
	if !ok {
		return conversation.Conversation{}, "", salon_errors.ErrNotParticipant
	}
	return conv, role, nil
}

func (s *ConversationService) ListForParticipant(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]conversation.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListForParticipant(ctx, participantID, limit, offset)
}

func (s *ConversationService) Archive(ctx context.Context, conversationID, participantID uuid.UUID) error {
	if _, _, err := s.VerifyParticipant(ctx, conversationID, participantID); err != nil {
		return err
	}
	return s.repo.Archive(ctx, conversationID)
}
