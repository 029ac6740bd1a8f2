package typing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/events"
	"salon-chat/internal/redis"
	"salon-chat/pkg/logger"
)

// Coordinator tracks ephemeral typing signals per (conversation,
// participant). A signal that is not refreshed within the window expires on
// its own and a stop update is relayed. Nothing is persisted; multiple
// simultaneous typists are tracked independently.
type Coordinator struct {
	window    time.Duration
	store     *redis.TypingStore
	publisher events.Publisher
	logger    *logger.Logger

	mu     sync.Mutex
	timers map[signalKey]*time.Timer
}

type signalKey struct {
	conversationID uuid.UUID
	participantID  uuid.UUID
}

func NewCoordinator(window time.Duration, store *redis.TypingStore, publisher events.Publisher, l *logger.Logger) *Coordinator {
	if window == 0 {
		window = 2 * time.Second
	}
	return &Coordinator{
		window:    window,
		store:     store,
		publisher: publisher,
		logger:    l,
		timers:    make(map[signalKey]*time.Timer),
	}
}

// Start refreshes the participant's typing signal. The first start relays a
// typing:update to the room (excluding the originator); refreshes only
// extend the expiry window.
func (c *Coordinator) Start(ctx context.Context, conversationID, participantID uuid.UUID) {
	if c.store != nil {
		if err := c.store.Refresh(ctx, conversationID, participantID); err != nil && c.logger != nil {
			c.logger.Errorf("typing refresh failed: %s", err)
		}
	}

	key := signalKey{conversationID, participantID}

	c.mu.Lock()
	if timer, ok := c.timers[key]; ok {
		timer.Reset(c.window)
		c.mu.Unlock()
		return
	}
	c.timers[key] = time.AfterFunc(c.window, func() {
		c.expire(key)
	})
	c.mu.Unlock()

	c.relay(ctx, conversationID, participantID, true)
}

// Stop clears the signal immediately. Idempotent.
func (c *Coordinator) Stop(ctx context.Context, conversationID, participantID uuid.UUID) {
	key := signalKey{conversationID, participantID}

	c.mu.Lock()
	timer, ok := c.timers[key]
	if ok {
		timer.Stop()
		delete(c.timers, key)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	if c.store != nil {
		if err := c.store.Clear(ctx, conversationID, participantID); err != nil && c.logger != nil {
			c.logger.Errorf("typing clear failed: %s", err)
		}
	}
	c.relay(ctx, conversationID, participantID, false)
}

func (c *Coordinator) expire(key signalKey) {
	c.mu.Lock()
	_, ok := c.timers[key]
	if ok {
		delete(c.timers, key)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if c.store != nil {
		if err := c.store.Clear(ctx, key.conversationID, key.participantID); err != nil && c.logger != nil {
			c.logger.Errorf("typing clear failed: %s", err)
		}
	}
	c.relay(ctx, key.conversationID, key.participantID, false)
}

// Snapshot returns the participants currently typing in a conversation,
// for a joining connection.
func (c *Coordinator) Snapshot(ctx context.Context, conversationID uuid.UUID) []uuid.UUID {
	if c.store != nil {
		ids, err := c.store.ActiveTypists(ctx, conversationID)
		if err == nil {
			return ids
		}
		if c.logger != nil {
			c.logger.Errorf("typing snapshot failed: %s", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []uuid.UUID
	for key := range c.timers {
		if key.conversationID == conversationID {
			out = append(out, key.participantID)
		}
	}
	return out
}

func (c *Coordinator) relay(ctx context.Context, conversationID, participantID uuid.UUID, isTyping bool) {
	if c.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(events.EventTypingUpdate, conversationID, events.TypingPayload{
		ParticipantID: participantID,
		IsTyping:      isTyping,
	})
	if err == nil {
		env.OriginID = participantID
		env.SuppressOrigin = true
		err = c.publisher.Publish(ctx, env)
	}
	if err != nil && c.logger != nil {
		c.logger.Errorf("typing relay failed: %s", err)
	}
}

// ActiveCount reports how many signals are live. Test hook.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
