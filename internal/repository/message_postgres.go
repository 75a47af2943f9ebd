package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

// MessageRepository defines the interface for message persistence
type MessageRepository interface {
	// Append inserts a message with the next sequence number for the
	// conversation. Sequence numbers form a contiguous run starting at 1.
	Append(ctx context.Context, conversationID string, role entity.MessageRole, content string, ragContext *string) (*entity.Message, error)
	// ListByConversation returns all messages ordered by sequence number.
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

var _ MessageRepository = &MessagePostgres{}

// MessagePostgres implements MessageRepository using PostgreSQL
type MessagePostgres struct {
	db *pgxpool.Pool
}

func NewMessagePostgres(db *pgxpool.Pool) *MessagePostgres {
	return &MessagePostgres{db: db}
}

const uniqueViolationCode = "23505"

// appendAttempts bounds the retry loop for sequence-number races between
// concurrent writers to the same conversation.
const appendAttempts = 3

func (r *MessagePostgres) Append(
	ctx context.Context,
	conversationID string,
	role entity.MessageRole,
	content string,
	ragContext *string,
) (*entity.Message, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, fmt.Errorf("invalid conversation ID: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		msg, err := r.appendOnce(ctx, conversationID, role, content, ragContext)
		if err == nil {
			return msg, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			// Another writer took the sequence number; recompute and retry.
			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, fmt.Errorf("append message: sequence contention: %w", lastErr)
}

func (r *MessagePostgres) appendOnce(
	ctx context.Context,
	conversationID string,
	role entity.MessageRole,
	content string,
	ragContext *string,
) (*entity.Message, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sequence_number, role, content, rag_context)
		SELECT $1, $2,
			COALESCE((SELECT MAX(sequence_number) FROM messages WHERE conversation_id = $2), 0) + 1,
			$3, $4, $5
		RETURNING id, conversation_id, sequence_number, role, content, rag_context, created_at`,
		uuid.New().String(), conversationID, string(role), content, ragContext,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

func (r *MessagePostgres) ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, fmt.Errorf("invalid conversation ID: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, sequence_number, role, content, rag_context, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sequence_number`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*entity.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (r *MessagePostgres) DeleteByConversation(ctx context.Context, conversationID string) error {
	if _, err := uuid.Parse(conversationID); err != nil {
		return fmt.Errorf("invalid conversation ID: %w", err)
	}

	if _, err := r.db.Exec(ctx,
		`DELETE FROM messages WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	return nil
}

func scanMessage(row pgx.Row) (*entity.Message, error) {
	var msg entity.Message
	var role string

	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SequenceNumber, &role,
		&msg.Content, &msg.RAGContext, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Role = entity.MessageRole(role)

	return &msg, nil
}
