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

// CollectionFileRepository tracks file ingestion state per collection or
// per user-files conversation.
type CollectionFileRepository interface {
	Create(ctx context.Context, file entity.CollectionFile) (*entity.CollectionFile, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.CollectionFile, error)
	ListByCollection(ctx context.Context, collectionID string) ([]*entity.CollectionFile, error)
	MarkProcessed(ctx context.Context, id string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
}

var _ CollectionFileRepository = &CollectionFilePostgres{}

// CollectionFilePostgres implements CollectionFileRepository using PostgreSQL
type CollectionFilePostgres struct {
	db *pgxpool.Pool
}

func NewCollectionFilePostgres(db *pgxpool.Pool) *CollectionFilePostgres {
	return &CollectionFilePostgres{db: db}
}

const collectionFileColumns = `id, collection_id, conversation_id, filename, size_bytes, is_processed, created_at`

func (r *CollectionFilePostgres) Create(ctx context.Context, file entity.CollectionFile) (*entity.CollectionFile, error) {
	if _, err := uuid.Parse(file.ID); err != nil {
		return nil, fmt.Errorf("invalid file ID: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO collection_files (id, collection_id, conversation_id, filename, size_bytes, is_processed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+collectionFileColumns,
		file.ID, file.CollectionID, file.ConversationID,
		file.Filename, file.SizeBytes, file.IsProcessed,
	)

	created, err := scanCollectionFile(row)
	if err != nil {
		return nil, fmt.Errorf("create collection file: %w", err)
	}

	return created, nil
}

func (r *CollectionFilePostgres) ListByConversation(ctx context.Context, conversationID string) ([]*entity.CollectionFile, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, fmt.Errorf("invalid conversation ID: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+collectionFileColumns+` FROM collection_files
		 WHERE conversation_id = $1 ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list conversation files: %w", err)
	}
	defer rows.Close()

	return scanCollectionFiles(rows)
}

func (r *CollectionFilePostgres) ListByCollection(ctx context.Context, collectionID string) ([]*entity.CollectionFile, error) {
	if _, err := uuid.Parse(collectionID); err != nil {
		return nil, fmt.Errorf("invalid collection ID: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+collectionFileColumns+` FROM collection_files
		 WHERE collection_id = $1 ORDER BY created_at`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list collection files: %w", err)
	}
	defer rows.Close()

	return scanCollectionFiles(rows)
}

func (r *CollectionFilePostgres) MarkProcessed(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid file ID: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE collection_files SET is_processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark file processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}

	return nil
}

func (r *CollectionFilePostgres) DeleteByConversation(ctx context.Context, conversationID string) error {
	if _, err := uuid.Parse(conversationID); err != nil {
		return fmt.Errorf("invalid conversation ID: %w", err)
	}

	if _, err := r.db.Exec(ctx,
		`DELETE FROM collection_files WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("delete conversation files: %w", err)
	}

	return nil
}

func scanCollectionFile(row pgx.Row) (*entity.CollectionFile, error) {
	var file entity.CollectionFile

	err := row.Scan(
		&file.ID, &file.CollectionID, &file.ConversationID,
		&file.Filename, &file.SizeBytes, &file.IsProcessed, &file.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &file, nil
}

func scanCollectionFiles(rows pgx.Rows) ([]*entity.CollectionFile, error) {
	var files []*entity.CollectionFile
	for rows.Next() {
		file, err := scanCollectionFile(rows)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrFileNotFound
			}
			return nil, fmt.Errorf("scan collection file: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection files: %w", err)
	}

	return files, nil
}
