package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// TypingStore keeps ephemeral typing signals in Redis. A signal is a key
// with a short TTL; absence of a refresh within the window means
// "not typing". Nothing here is persisted or ordered.
type TypingStore struct {
	client *goredis.Client
	window time.Duration
}

const typingKeyPrefix = "typing:" // typing:<conversation_id>:<participant_id>

func NewTypingStore(client *goredis.Client, window time.Duration) *TypingStore {
	if window == 0 {
		window = 2 * time.Second
	}
	return &TypingStore{client: client, window: window}
}

func typingKey(conversationID, participantID uuid.UUID) string {
	return typingKeyPrefix + conversationID.String() + ":" + participantID.String()
}

// Refresh marks the participant as typing for one validity window.
func (t *TypingStore) Refresh(ctx context.Context, conversationID, participantID uuid.UUID) error {
	return t.client.Set(ctx, typingKey(conversationID, participantID), "1", t.window).Err()
}

// Clear drops the participant's typing signal immediately.
func (t *TypingStore) Clear(ctx context.Context, conversationID, participantID uuid.UUID) error {
	return t.client.Del(ctx, typingKey(conversationID, participantID)).Err()
}

// ActiveTypists returns the participants currently flagged as typing in the
// conversation. Used to snapshot typing state for a joining connection.
func (t *TypingStore) ActiveTypists(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	pattern := typingKeyPrefix + conversationID.String() + ":*"

	var out []uuid.UUID
	iter := t.client.Scan(ctx, 0, pattern, 16).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw := key[len(typingKeyPrefix)+len(conversationID.String())+1:]
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
