package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

// TelegramLinkRepository pins a Telegram chat to its current conversation.
type TelegramLinkRepository interface {
	Get(ctx context.Context, userID int64) (*entity.TelegramLink, error)
	Set(ctx context.Context, userID int64, conversationID string) error
	Delete(ctx context.Context, userID int64) error
}

var _ TelegramLinkRepository = &TelegramLinkPostgres{}

// TelegramLinkPostgres implements TelegramLinkRepository using PostgreSQL
type TelegramLinkPostgres struct {
	db *pgxpool.Pool
}

func NewTelegramLinkPostgres(db *pgxpool.Pool) *TelegramLinkPostgres {
	return &TelegramLinkPostgres{db: db}
}

func (r *TelegramLinkPostgres) Get(ctx context.Context, userID int64) (*entity.TelegramLink, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, conversation_id, updated_at FROM telegram_links
		WHERE user_id = $1`, userID)

	var link entity.TelegramLink
	err := row.Scan(&link.UserID, &link.ConversationID, &link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTelegramLinkNotFound
		}
		return nil, fmt.Errorf("get telegram link: %w", err)
	}

	return &link, nil
}

func (r *TelegramLinkPostgres) Set(ctx context.Context, userID int64, conversationID string) error {
	if _, err := uuid.Parse(conversationID); err != nil {
		return fmt.Errorf("invalid conversation ID: %w", err)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO telegram_links (user_id, conversation_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET conversation_id = EXCLUDED.conversation_id, updated_at = NOW()`,
		userID, conversationID)
	if err != nil {
		return fmt.Errorf("set telegram link: %w", err)
	}

	return nil
}

func (r *TelegramLinkPostgres) Delete(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM telegram_links WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete telegram link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTelegramLinkNotFound
	}

	return nil
}
