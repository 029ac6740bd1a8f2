package typing

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-chat/internal/events"
)

type capturedPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *capturedPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *capturedPublisher) all() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Envelope, len(p.envelopes))
	copy(out, p.envelopes)
	return out
}

func typingPayload(t *testing.T, env events.Envelope) events.TypingPayload {
	t.Helper()
	var payload events.TypingPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return payload
}

func TestEmitterSingleStartPerBurst(t *testing.T) {
	var starts, stops int
	e := NewEmitter(time.Hour, func() { starts++ }, func() { stops++ })

	e.Keystroke()
	e.Keystroke()
	e.Keystroke()

	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, stops)
	assert.True(t, e.Typing())
	e.Close()
}

func TestEmitterMessageSentEndsBurst(t *testing.T) {
	var starts, stops int
	e := NewEmitter(time.Hour, func() { starts++ }, func() { stops++ })

	e.Keystroke()
	e.MessageSent()
	e.MessageSent()

	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.False(t, e.Typing())
}

func TestEmitterIdleStopsOnce(t *testing.T) {
	var mu sync.Mutex
	var starts, stops int
	e := NewEmitter(20*time.Millisecond,
		func() { mu.Lock(); starts++; mu.Unlock() },
		func() { mu.Lock(); stops++; mu.Unlock() })

	e.Keystroke()
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	mu.Unlock()
	assert.False(t, e.Typing())
}

func TestEmitterNewBurstAfterStop(t *testing.T) {
	var starts, stops int
	e := NewEmitter(time.Hour, func() { starts++ }, func() { stops++ })

	e.Keystroke()
	e.MessageSent()
	e.Keystroke()

	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
	e.Close()
}

func TestCoordinatorStartRelaysOnce(t *testing.T) {
	pub := &capturedPublisher{}
	c := NewCoordinator(time.Hour, nil, pub, nil)
	conv, p1 := uuid.New(), uuid.New()

	c.Start(context.Background(), conv, p1)
	c.Start(context.Background(), conv, p1)
	c.Start(context.Background(), conv, p1)

	envs := pub.all()
	require.Len(t, envs, 1)
	assert.Equal(t, events.EventTypingUpdate, envs[0].Event)
	assert.Equal(t, p1, envs[0].OriginID)
	assert.True(t, envs[0].SuppressOrigin)
	payload := typingPayload(t, envs[0])
	assert.True(t, payload.IsTyping)
	assert.Equal(t, 1, c.ActiveCount())
}

func TestCoordinatorStopIsIdempotent(t *testing.T) {
	pub := &capturedPublisher{}
	c := NewCoordinator(time.Hour, nil, pub, nil)
	conv, p1 := uuid.New(), uuid.New()

	c.Start(context.Background(), conv, p1)
	c.Stop(context.Background(), conv, p1)
	c.Stop(context.Background(), conv, p1)

	envs := pub.all()
	require.Len(t, envs, 2)
	payload := typingPayload(t, envs[1])
	assert.False(t, payload.IsTyping)
	assert.Equal(t, 0, c.ActiveCount())
}

func TestCoordinatorExpiryRelaysStop(t *testing.T) {
	pub := &capturedPublisher{}
	c := NewCoordinator(20*time.Millisecond, nil, pub, nil)
	conv, p1 := uuid.New(), uuid.New()

	c.Start(context.Background(), conv, p1)

	require.Eventually(t, func() bool {
		return c.ActiveCount() == 0
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(pub.all()) == 2
	}, time.Second, 5*time.Millisecond)
	payload := typingPayload(t, pub.all()[1])
	assert.False(t, payload.IsTyping)
}

func TestCoordinatorTracksTypistsIndependently(t *testing.T) {
	pub := &capturedPublisher{}
	c := NewCoordinator(time.Hour, nil, pub, nil)
	conv := uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	c.Start(context.Background(), conv, p1)
	c.Start(context.Background(), conv, p2)
	assert.Equal(t, 2, c.ActiveCount())

	c.Stop(context.Background(), conv, p1)
	assert.Equal(t, 1, c.ActiveCount())

	snapshot := c.Snapshot(context.Background(), conv)
	require.Len(t, snapshot, 1)
	assert.Equal(t, p2, snapshot[0])
}

func TestCoordinatorSnapshotScopedToConversation(t *testing.T) {
	pub := &capturedPublisher{}
	c := NewCoordinator(time.Hour, nil, pub, nil)
	convA, convB := uuid.New(), uuid.New()
	p1 := uuid.New()

	c.Start(context.Background(), convA, p1)

	assert.Len(t, c.Snapshot(context.Background(), convA), 1)
	assert.Empty(t, c.Snapshot(context.Background(), convB))
}
