package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
	"salon-chat/internal/events"
	"salon-chat/internal/redis"
	"salon-chat/internal/repository"
	salon_errors "salon-chat/pkg/errors"
	"salon-chat/pkg/logger"
)

// MessageService owns the append-only message log. Appends are serialized
// per conversation so accepted timestamps are strictly monotonic within a
// room, while unrelated conversations proceed in parallel.
// SendLimiter caps the append rate per participant. Nil disables limiting.
type SendLimiter interface {
	AllowMessage(ctx context.Context, participantID string) (*redis.RateLimitResult, error)
}

type MessageService struct {
	messageRepo  repository.MessageRepository
	convRepo     repository.ConversationRepository
	publisher    events.Publisher
	limiter      SendLimiter
	historyLimit int
	logger       *logger.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewMessageService(messageRepo repository.MessageRepository, convRepo repository.ConversationRepository, publisher events.Publisher, l *logger.Logger) *MessageService {
	return &MessageService{
		messageRepo:  messageRepo,
		convRepo:     convRepo,
		publisher:    publisher,
		historyLimit: 50,
		logger:       l,
		locks:        make(map[uuid.UUID]*sync.Mutex),
	}
}

// SetRateLimiter enables per-participant send limiting.
func (s *MessageService) SetRateLimiter(limiter SendLimiter) {
	s.limiter = limiter
}

// SetHistoryLimit overrides the page size used when a history request
// carries none.
func (s *MessageService) SetHistoryLimit(limit int) {
	if limit > 0 {
		s.historyLimit = limit
	}
}

type AppendInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Type           message.Type
	Body           string
	AttachmentKey  string
	ProvisionalID  string
	SentAt         *time.Time
}

type AppendResult struct {
	Message message.Message
	// Duplicate is true when the provisional id was already appended; the
	// returned Message is the existing durable record.
	Duplicate bool
}

func (s *MessageService) lockFor(conversationID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conversationID] = l
	}
	return l
}

// Append assigns a durable id and an authoritative accepted timestamp and
// persists the message exactly once per (conversation, sender, provisional
// id). A retry with the same provisional id returns the existing record.
func (s *MessageService) Append(ctx context.Context, in AppendInput) (AppendResult, error) {
	if err := validateAppend(in); err != nil {
		return AppendResult{}, err
	}

	if s.limiter != nil {
		result, err := s.limiter.AllowMessage(ctx, in.SenderID.String())
		if err != nil {
			if s.logger != nil {
				s.logger.Errorf("rate limit check failed for %s: %s", in.SenderID, err)
			}
		} else if !result.Allowed {
			return AppendResult{}, salon_errors.ErrRateLimited
		}
	}

	conv, role, err := s.verifyParticipant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return AppendResult{}, err
	}
	if conv.Status != conversation.StatusOpen {
		return AppendResult{}, salon_errors.ErrConversationClosed
	}

	lock := s.lockFor(in.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	acceptedAt, err := s.nextAcceptedAt(ctx, in.ConversationID)
	if err != nil {
		return AppendResult{}, err
	}

	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderRole:     role,
		Type:           in.Type,
		Body:           toNullString(in.Body),
		AttachmentKey:  toNullString(in.AttachmentKey),
		ProvisionalID:  in.ProvisionalID,
		SentAt:         toNullTime(in.SentAt),
		AcceptedAt:     acceptedAt,
	}

	if err := s.messageRepo.Insert(ctx, &msg); err != nil {
		if errors.Is(err, salon_errors.ErrAlreadyExists) {
			existing, getErr := s.messageRepo.GetByProvisional(ctx, in.ConversationID, in.SenderID, in.ProvisionalID)
			if getErr != nil {
				return AppendResult{}, getErr
			}
			return AppendResult{Message: existing, Duplicate: true}, nil
		}
		return AppendResult{}, err
	}

	// Preview/unread bookkeeping never fails the send.
	if err := s.convRepo.TouchOnAppend(ctx, in.ConversationID, previewText(msg), role, acceptedAt); err != nil && s.logger != nil {
		s.logger.Errorf("touch on append failed for conversation %s: %s", in.ConversationID, err)
	}

	// Publish while still holding the append lock so bus order equals
	// accept order.
	s.publish(ctx, events.EventMessageNew, in.ConversationID, events.MessagePayloadFrom(msg))

	return AppendResult{Message: msg}, nil
}

// nextAcceptedAt returns a timestamp strictly greater than every accepted
// timestamp already in the conversation. Caller holds the conversation lock.
func (s *MessageService) nextAcceptedAt(ctx context.Context, conversationID uuid.UUID) (time.Time, error) {
	now := time.Now().UTC()
	latest, ok, err := s.messageRepo.LatestAcceptedAt(ctx, conversationID)
	if err != nil {
		return time.Time{}, err
	}
	if ok && !now.After(latest) {
		now = latest.Add(time.Microsecond)
	}
	return now, nil
}

// History returns up to limit messages strictly older than the cursor in
// chronological order, plus whether older history remains.
func (s *MessageService) History(ctx context.Context, conversationID, participantID uuid.UUID, cursor *time.Time, limit int) ([]message.Message, bool, error) {
	if _, _, err := s.verifyParticipant(ctx, conversationID, participantID); err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = s.historyLimit
	}

	page, err := s.messageRepo.ListBackward(ctx, conversationID, cursor, limit+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}

	// Repo returns newest first; callers render chronologically.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, hasMore, nil
}

// MarkDelivered stamps delivery on messages that reached at least one
// participant socket. Already-stamped rows are untouched.
func (s *MessageService) MarkDelivered(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID) error {
	return s.messageRepo.MarkDelivered(ctx, conversationID, messageIDs, time.Now().UTC())
}

// MarkRead records that the reader is caught up to now: zeroes the reader's
// unread counter, stamps read timestamps forward-only on the counterpart's
// messages, and broadcasts message:read to the room.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (time.Time, error) {
	_, role, err := s.verifyParticipant(ctx, conversationID, readerID)
	if err != nil {
		return time.Time{}, err
	}

	readAt := time.Now().UTC()
	if err := s.convRepo.MarkRead(ctx, conversationID, role); err != nil {
		return time.Time{}, err
	}
	if _, err := s.messageRepo.MarkReadUpTo(ctx, conversationID, role, readAt); err != nil {
		return time.Time{}, err
	}

	s.publish(ctx, events.EventMessageRead, conversationID, events.ReadPayload{ReaderID: readerID, ReadAt: readAt})
	return readAt, nil
}

func (s *MessageService) verifyParticipant(ctx context.Context, conversationID, participantID uuid.UUID) (conversation.Conversation, conversation.Role, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, "", err
	}
	role, ok := conv.ParticipantRole(participantID)
	if !ok {
		return conversation.Conversation{}, "", salon_errors.ErrNotParticipant
	}
	return conv, role, nil
}

func (s *MessageService) publish(ctx context.Context, event string, conversationID uuid.UUID, payload interface{}) {
	if s.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(event, conversationID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	if err != nil && s.logger != nil {
		s.logger.Errorf("publish %s failed for conversation %s: %s", event, conversationID, err)
	}
}

func validateAppend(in AppendInput) error {
	if in.ConversationID == uuid.Nil || in.SenderID == uuid.Nil {
		return salon_errors.ErrInvalidInput
	}
	if in.ProvisionalID == "" {
		return salon_errors.ErrInvalidInput
	}
	switch in.Type {
	case message.TypeText, message.TypeSystem:
		if in.Body == "" {
			return salon_errors.ErrInvalidInput
		}
	case message.TypeImage, message.TypeFile:
		if in.AttachmentKey == "" {
			return salon_errors.ErrInvalidInput
		}
	default:
		return salon_errors.ErrInvalidInput
	}
	return nil
}

func previewText(m message.Message) string {
	switch m.Type {
	case message.TypeImage:
		return "[image]"
	case message.TypeFile:
		return "[file]"
	default:
		return m.Body.String
	}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
