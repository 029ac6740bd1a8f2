package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"salon-chat/internal/domain/conversation"
	salon_errors "salon-chat/pkg/errors"
)

type PostgresConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

const conversationColumns = `id, customer_id, salon_id, context, booking_id,
	last_message_text, last_message_at, customer_unread, staff_unread,
	status, created_at, updated_at`

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, customer_id, salon_id, context, booking_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.CustomerID, c.SalonID, c.Context, c.BookingID, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return salon_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = $1`, id)
	return scanConversation(row)
}

func (r *PostgresConversationRepository) GetOpenByTuple(ctx context.Context, customerID, salonID uuid.UUID, convCtx conversation.Context) (conversation.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE customer_id = $1 AND salon_id = $2 AND context = $3 AND status = 'open'`,
		customerID, salonID, convCtx)
	return scanConversation(row)
}

func (r *PostgresConversationRepository) ListForParticipant(ctx context.Context, participantID uuid.UUID, limit, offset int) ([]conversation.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE customer_id = $1 OR salon_id = $1
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2 OFFSET $3`,
		participantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []conversation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TouchOnAppend updates the preview fields and increments the unread counter
// of the role opposite to the sender. The reader's own counter is untouched.
func (r *PostgresConversationRepository) TouchOnAppend(ctx context.Context, id uuid.UUID, preview string, senderRole conversation.Role, at time.Time) error {
	counter := "staff_unread"
	if senderRole == conversation.RoleStaff {
		counter = "customer_unread"
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_text = $2,
		    last_message_at   = $3,
		    updated_at        = $3,
		    `+counter+`       = `+counter+` + 1
		WHERE id = $1`,
		id, preview, at)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// MarkRead zeroes the reader's own unread counter only.
func (r *PostgresConversationRepository) MarkRead(ctx context.Context, id uuid.UUID, readerRole conversation.Role) error {
	counter := "customer_unread"
	if readerRole == conversation.RoleStaff {
		counter = "staff_unread"
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET `+counter+` = 0, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (r *PostgresConversationRepository) Archive(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = 'archived', updated_at = now()
		WHERE id = $1 AND status = 'open'`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.SalonID, &c.Context, &c.BookingID,
		&c.LastMessageText, &c.LastMessageAt, &c.CustomerUnread, &c.StaffUnread,
		&c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conversation.Conversation{}, salon_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return salon_errors.ErrNotFound
	}
	return nil
}
