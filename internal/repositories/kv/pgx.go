package kv

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/insta-stories-viewer/internal/repositories"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

type PgxStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewPgxStore(pool *pgxpool.Pool, logger logger.Logger) *PgxStore {
	return &PgxStore{
		pool:   pool,
		logger: logger.WithComponent("KVStore"),
	}
}

var _ Store = (*PgxStore)(nil)

func (r *PgxStore) Get(ctx context.Context, key string) (string, error) {
	query, args, err := repositories.SqBuilder.
		Select("value").
		From("kv_store").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return "", repositories.ErrBadQuery
	}

	var value string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

func (r *PgxStore) Set(ctx context.Context, key, value string) error {
	query, args, err := repositories.SqBuilder.
		Insert("kv_store").
		Columns("key", "value", "updated_at").
		Values(key, value, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		r.logger.Error("Failed to upsert key", "key", key, "error", err)
		return errors.Join(err, ErrCannotSet)
	}
	return nil
}
