package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

// ConversationRepository defines the interface for conversation persistence
type ConversationRepository interface {
	Create(ctx context.Context, conv entity.Conversation) (*entity.Conversation, error)
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error)
	// MarkActive clears the empty flag and the expiry timestamp after the
	// first message is recorded.
	MarkActive(ctx context.Context, id string) error
	UpdateTitle(ctx context.Context, id, title string) error
	// UpdateGlobalLink re-snapshots the conversation's link to a global
	// collection (id plus name-at-migration-time).
	UpdateGlobalLink(ctx context.Context, id, collectionID, collectionName string) (*entity.Conversation, error)
	Delete(ctx context.Context, id string) error
	// ListExpiredEmpty returns empty conversations whose expiry has passed.
	ListExpiredEmpty(ctx context.Context, now time.Time, limit int) ([]*entity.Conversation, error)
	// ListUnclassified returns conversations with a NULL or unknown type
	// column, for cleanup tooling.
	ListUnclassified(ctx context.Context, limit int) ([]*entity.Conversation, error)
}

var _ ConversationRepository = &ConversationPostgres{}

// ConversationPostgres implements ConversationRepository using PostgreSQL
type ConversationPostgres struct {
	db *pgxpool.Pool
}

func NewConversationPostgres(db *pgxpool.Pool) *ConversationPostgres {
	return &ConversationPostgres{db: db}
}

const conversationColumns = `id, user_id, type, title, is_empty, expires_at,
	linked_global_collection_id, original_global_collection_name, created_at, updated_at`

func (r *ConversationPostgres) Create(ctx context.Context, conv entity.Conversation) (*entity.Conversation, error) {
	if _, err := uuid.Parse(conv.ID); err != nil {
		return nil, fmt.Errorf("invalid conversation ID: %w", err)
	}

	var convType *string
	if conv.Type != entity.ConversationTypeUnclassified {
		t := string(conv.Type)
		convType = &t
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, type, title, is_empty, expires_at,
			linked_global_collection_id, original_global_collection_name)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7)
		RETURNING `+conversationColumns,
		conv.ID, conv.UserID, convType, conv.Title, conv.ExpiresAt,
		conv.LinkedGlobalCollectionID, conv.OriginalGlobalCollectionName,
	)

	created, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return created, nil
}

func (r *ConversationPostgres) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid conversation ID: %w", err)
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return conv, nil
}

func (r *ConversationPostgres) ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

func (r *ConversationPostgres) MarkActive(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET is_empty = FALSE, expires_at = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark conversation active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

func (r *ConversationPostgres) UpdateTitle(ctx context.Context, id, title string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversations SET title = $2, updated_at = NOW() WHERE id = $1`,
		id, title)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

func (r *ConversationPostgres) UpdateGlobalLink(ctx context.Context, id, collectionID, collectionName string) (*entity.Conversation, error) {
	if _, err := uuid.Parse(collectionID); err != nil {
		return nil, fmt.Errorf("invalid collection ID: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE conversations
		SET linked_global_collection_id = $2,
		    original_global_collection_name = $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, collectionID, collectionName)

	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("update global link: %w", err)
	}

	return conv, nil
}

func (r *ConversationPostgres) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

func (r *ConversationPostgres) ListExpiredEmpty(ctx context.Context, now time.Time, limit int) ([]*entity.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE is_empty AND expires_at IS NOT NULL AND expires_at < $1
		 ORDER BY expires_at LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired conversations: %w", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

func (r *ConversationPostgres) ListUnclassified(ctx context.Context, limit int) ([]*entity.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE type IS NULL OR type NOT IN ($1, $2, $3)
		 ORDER BY created_at LIMIT $4`,
		string(entity.ConversationTypeRegular),
		string(entity.ConversationTypeUserFiles),
		string(entity.ConversationTypeGlobalCollection),
		limit)
	if err != nil {
		return nil, fmt.Errorf("list unclassified conversations: %w", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

func scanConversation(row pgx.Row) (*entity.Conversation, error) {
	var conv entity.Conversation
	var rawType *string

	err := row.Scan(
		&conv.ID, &conv.UserID, &rawType, &conv.Title, &conv.IsEmpty, &conv.ExpiresAt,
		&conv.LinkedGlobalCollectionID, &conv.OriginalGlobalCollectionName,
		&conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conv.Type = entity.ParseConversationType(rawType)

	return &conv, nil
}

func scanConversations(rows pgx.Rows) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return convs, nil
}
