package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	"salon-chat/internal/domain/message"
	salon_errors "salon-chat/pkg/errors"
)

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

const messageColumns = `id, conversation_id, sender_id, sender_role, type, body,
	attachment_key, provisional_id, sent_at, accepted_at, delivered_at, read_at`

func (r *PostgresMessageRepository) Insert(ctx context.Context, m *message.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, sender_id, sender_role, type, body,
			 attachment_key, provisional_id, sent_at, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.ConversationID, m.SenderID, m.SenderRole, m.Type, m.Body,
		m.AttachmentKey, m.ProvisionalID, m.SentAt, m.AcceptedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return salon_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (r *PostgresMessageRepository) GetByProvisional(ctx context.Context, conversationID, senderID uuid.UUID, provisionalID string) (message.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1 AND sender_id = $2 AND provisional_id = $3`,
		conversationID, senderID, provisionalID)
	return scanMessage(row)
}

// ListBackward returns up to limit messages strictly older than before
// (or the newest limit when before is nil), newest first.
func (r *PostgresMessageRepository) ListBackward(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	var (
		query string
		args  []interface{}
	)
	if before != nil {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE conversation_id = $1 AND accepted_at < $2
			ORDER BY accepted_at DESC LIMIT $3`
		args = []interface{}{conversationID, *before, limit}
	} else {
		query = `
			SELECT ` + messageColumns + `
			FROM messages
			WHERE conversation_id = $1
			ORDER BY accepted_at DESC LIMIT $2`
		args = []interface{}{conversationID, limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresMessageRepository) LatestAcceptedAt(ctx context.Context, conversationID uuid.UUID) (time.Time, bool, error) {
	var t time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT accepted_at FROM messages
		WHERE conversation_id = $1
		ORDER BY accepted_at DESC LIMIT 1`, conversationID).Scan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (r *PostgresMessageRepository) MarkDelivered(ctx context.Context, conversationID uuid.UUID, messageIDs []uuid.UUID, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	args := []interface{}{conversationID, at}
	for _, id := range messageIDs {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET delivered_at = $2
		WHERE conversation_id = $1
		  AND delivered_at IS NULL
		  AND id IN (`+buildPlaceholders(3, len(messageIDs))+`)`,
		args...)
	return err
}

// MarkReadUpTo stamps read_at on the counterpart role's messages accepted at
// or before upto. Read timestamps only ever move forward; rows already
// stamped with a later or equal time are left alone.
func (r *PostgresMessageRepository) MarkReadUpTo(ctx context.Context, conversationID uuid.UUID, readerRole conversation.Role, upto time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET read_at = $3
		WHERE conversation_id = $1
		  AND sender_role <> $2
		  AND accepted_at <= $3
		  AND (read_at IS NULL OR read_at < $3)`,
		conversationID, readerRole, upto)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanMessage(row rowScanner) (message.Message, error) {
	var m message.Message
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.SenderRole, &m.Type, &m.Body,
		&m.AttachmentKey, &m.ProvisionalID, &m.SentAt, &m.AcceptedAt,
		&m.DeliveredAt, &m.ReadAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return message.Message{}, salon_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}
