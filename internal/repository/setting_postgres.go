package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

// SettingRepository defines the interface for runtime setting persistence
type SettingRepository interface {
	Get(ctx context.Context, category, key string) (*entity.Setting, error)
	ListByCategory(ctx context.Context, category string) ([]*entity.Setting, error)
	Upsert(ctx context.Context, category, key, value string) error
	Delete(ctx context.Context, category, key string) error
}

var _ SettingRepository = &SettingPostgres{}

// SettingPostgres implements SettingRepository using PostgreSQL
type SettingPostgres struct {
	db *pgxpool.Pool
}

func NewSettingPostgres(db *pgxpool.Pool) *SettingPostgres {
	return &SettingPostgres{db: db}
}

func (r *SettingPostgres) Get(ctx context.Context, category, key string) (*entity.Setting, error) {
	row := r.db.QueryRow(ctx, `
		SELECT category, key, value, updated_at FROM settings
		WHERE category = $1 AND key = $2`, category, key)

	var s entity.Setting
	err := row.Scan(&s.Category, &s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}

	return &s, nil
}

func (r *SettingPostgres) ListByCategory(ctx context.Context, category string) ([]*entity.Setting, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, key, value, updated_at FROM settings
		WHERE category = $1 ORDER BY key`, category)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []*entity.Setting
	for rows.Next() {
		var s entity.Setting
		if err := rows.Scan(&s.Category, &s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}

	return settings, nil
}

func (r *SettingPostgres) Upsert(ctx context.Context, category, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (category, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (category, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()`,
		category, key, value)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}

	return nil
}

func (r *SettingPostgres) Delete(ctx context.Context, category, key string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM settings WHERE category = $1 AND key = $2`, category, key)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingNotFound
	}

	return nil
}
