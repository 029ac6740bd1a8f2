package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
	"salon-chat/internal/events"
	salon_errors "salon-chat/pkg/errors"
)

// fakeConversationRepo is an in-memory stand-in enforcing the same
// uniqueness rule as the partial index on open tuples.
type fakeConversationRepo struct {
	mu    sync.Mutex
	convs map[uuid.UUID]conversation.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{convs: make(map[uuid.UUID]conversation.Conversation)}
}

func (r *fakeConversationRepo) Create(_ context.Context, c *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.convs {
		if existing.CustomerID == c.CustomerID && existing.SalonID == c.SalonID &&
			existing.Context == c.Context && existing.Status == conversation.StatusOpen {
			return salon_errors.ErrAlreadyExists
		}
	}
	r.convs[c.ID] = *c
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return conversation.Conversation{}, salon_errors.ErrNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) GetOpenByTuple(_ context.Context, customerID, salonID uuid.UUID, convCtx conversation.Context) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.CustomerID == customerID && c.SalonID == salonID && c.Context == convCtx && c.Status == conversation.StatusOpen {
			return c, nil
		}
	}
	return conversation.Conversation{}, salon_errors.ErrNotFound
}

func (r *fakeConversationRepo) ListForParticipant(_ context.Context, participantID uuid.UUID, limit, offset int) ([]conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.Conversation
	for _, c := range r.convs {
		if c.CustomerID == participantID || c.SalonID == participantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeConversationRepo) TouchOnAppend(_ context.Context, id uuid.UUID, preview string, senderRole conversation.Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return salon_errors.ErrNotFound
	}
	c.LastMessageText.String, c.LastMessageText.Valid = preview, true
	c.LastMessageAt.Time, c.LastMessageAt.Valid = at, true
	if senderRole == conversation.RoleCustomer {
		c.StaffUnread++
	} else {
		c.CustomerUnread++
	}
	c.UpdatedAt = at
	r.convs[id] = c
	return nil
}

func (r *fakeConversationRepo) MarkRead(_ context.Context, id uuid.UUID, readerRole conversation.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return salon_errors.ErrNotFound
	}
	if readerRole == conversation.RoleCustomer {
		c.CustomerUnread = 0
	} else {
		c.StaffUnread = 0
	}
	r.convs[id] = c
	return nil
}

func (r *fakeConversationRepo) Archive(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return salon_errors.ErrNotFound
	}
	c.Status = conversation.StatusArchived
	r.convs[id] = c
	return nil
}

// fakeMessageRepo enforces the provisional uniqueness constraint the way
// the messages table does.
type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs []message.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Insert(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.msgs {
		if existing.ConversationID == m.ConversationID && existing.SenderID == m.SenderID &&
			existing.ProvisionalID == m.ProvisionalID {
			return salon_errors.ErrAlreadyExists
		}
	}
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return message.Message{}, salon_errors.ErrNotFound
}

func (r *fakeMessageRepo) GetByProvisional(_ context.Context, conversationID, senderID uuid.UUID, provisionalID string) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && m.SenderID == senderID && m.ProvisionalID == provisionalID {
			return m, nil
		}
	}
	return message.Message{}, salon_errors.ErrNotFound
}

func (r *fakeMessageRepo) ListBackward(_ context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, m := range r.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		if before != nil && !m.AcceptedAt.Before(*before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AcceptedAt.After(out[j].AcceptedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) LatestAcceptedAt(_ context.Context, conversationID uuid.UUID) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest time.Time
	var found bool
	for _, m := range r.msgs {
		if m.ConversationID == conversationID && m.AcceptedAt.After(latest) {
			latest = m.AcceptedAt
			found = true
		}
	}
	return latest, found, nil
}

func (r *fakeMessageRepo) MarkDelivered(_ context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = true
	}
	for i := range r.msgs {
		m := &r.msgs[i]
		if m.ConversationID == conversationID && wanted[m.ID] && !m.DeliveredAt.Valid {
			m.DeliveredAt.Time, m.DeliveredAt.Valid = at, true
		}
	}
	return nil
}

func (r *fakeMessageRepo) MarkReadUpTo(_ context.Context, conversationID uuid.UUID, readerRole conversation.Role, upto time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.msgs {
		m := &r.msgs[i]
		if m.ConversationID != conversationID || m.SenderRole == readerRole {
			continue
		}
		if m.AcceptedAt.After(upto) {
			continue
		}
		if m.ReadAt.Valid && !m.ReadAt.Time.Before(upto) {
			continue
		}
		m.ReadAt.Time, m.ReadAt.Valid = upto, true
		n++
	}
	return n, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *recordingPublisher) all() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Envelope, len(p.envelopes))
	copy(out, p.envelopes)
	return out
}
