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

// CollectionRepository defines the interface for collection registry persistence
type CollectionRepository interface {
	Create(ctx context.Context, coll entity.Collection) (*entity.Collection, error)
	GetByID(ctx context.Context, id string) (*entity.Collection, error)
	GetByName(ctx context.Context, name string) (*entity.Collection, error)
	List(ctx context.Context, includeAdminOnly bool) ([]*entity.Collection, error)
	// GetGlobalDefault returns the single collection flagged as the global
	// default, or ErrNoGlobalDefault when none is configured.
	GetGlobalDefault(ctx context.Context) (*entity.Collection, error)
	// SetGlobalDefault atomically moves the global default flag to the given
	// collection, clearing it from any previous holder.
	SetGlobalDefault(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

var _ CollectionRepository = &CollectionPostgres{}

// CollectionPostgres implements CollectionRepository using PostgreSQL
type CollectionPostgres struct {
	db *pgxpool.Pool
}

func NewCollectionPostgres(db *pgxpool.Pool) *CollectionPostgres {
	return &CollectionPostgres{db: db}
}

const collectionColumns = `id, name, description, is_admin_only, is_global_default, is_active, created_at`

func (r *CollectionPostgres) Create(ctx context.Context, coll entity.Collection) (*entity.Collection, error) {
	if _, err := uuid.Parse(coll.ID); err != nil {
		return nil, fmt.Errorf("invalid collection ID: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO collections (id, name, description, is_admin_only, is_global_default, is_active)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING `+collectionColumns,
		coll.ID, coll.Name, coll.Description, coll.IsAdminOnly, coll.IsActive,
	)

	created, err := scanCollection(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrCollectionExists
		}
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return created, nil
}

func (r *CollectionPostgres) GetByID(ctx context.Context, id string) (*entity.Collection, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid collection ID: %w", err)
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = $1`, id)

	coll, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}

	return coll, nil
}

func (r *CollectionPostgres) GetByName(ctx context.Context, name string) (*entity.Collection, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE name = $1`, name)

	coll, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("get collection by name: %w", err)
	}

	return coll, nil
}

func (r *CollectionPostgres) List(ctx context.Context, includeAdminOnly bool) ([]*entity.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections`
	if !includeAdminOnly {
		query += ` WHERE NOT is_admin_only`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var colls []*entity.Collection
	for rows.Next() {
		coll, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		colls = append(colls, coll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}

	return colls, nil
}

func (r *CollectionPostgres) GetGlobalDefault(ctx context.Context) (*entity.Collection, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE is_global_default`)

	coll, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoGlobalDefault
		}
		return nil, fmt.Errorf("get global default collection: %w", err)
	}

	return coll, nil
}

func (r *CollectionPostgres) SetGlobalDefault(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid collection ID: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Clear the previous holder first so the partial unique index never
	// sees two defaults at once.
	if _, err := tx.Exec(ctx,
		`UPDATE collections SET is_global_default = FALSE WHERE is_global_default`); err != nil {
		return fmt.Errorf("clear global default: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE collections SET is_global_default = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set global default: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (r *CollectionPostgres) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid collection ID: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE collections SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update collection active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}

	return nil
}

func (r *CollectionPostgres) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid collection ID: %w", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCollectionNotFound
	}

	return nil
}

func scanCollection(row pgx.Row) (*entity.Collection, error) {
	var coll entity.Collection

	err := row.Scan(
		&coll.ID, &coll.Name, &coll.Description,
		&coll.IsAdminOnly, &coll.IsGlobalDefault, &coll.IsActive, &coll.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &coll, nil
}
