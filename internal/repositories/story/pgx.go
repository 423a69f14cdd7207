package story

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/internal/repositories"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

type PgxRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewPgxRepository(pool *pgxpool.Pool, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pool:   pool,
		logger: logger.WithComponent("StoryRepo"),
	}
}

var _ Repository = (*PgxRepository)(nil)

func (r *PgxRepository) List(ctx context.Context) ([]domain.Story, error) {
	query, args, err := repositories.SqBuilder.
		Select("id", "type", "url", "duration_ms", "user_id", "user_name", "user_avatar_url").
		From("stories").
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stories: %w", err)
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		var s domain.Story
		var mediaType string
		if err := rows.Scan(&s.ID, &mediaType, &s.URL, &s.Duration, &s.UserID, &s.UserName, &s.UserAvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		s.Type = domain.MediaType(mediaType)
		stories = append(stories, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story rows: %w", err)
	}

	return stories, nil
}

// Create appends a story at the end of the ingestion order.
func (r *PgxRepository) Create(ctx context.Context, s domain.Story) error {
	query, args, err := repositories.SqBuilder.
		Insert("stories").
		Columns("id", "type", "url", "duration_ms", "user_id", "user_name", "user_avatar_url").
		Values(s.ID, string(s.Type), s.URL, s.Duration, s.UserID, s.UserName, s.UserAvatarURL).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return errors.Join(err, ErrCannotCreate)
	}
	return nil
}
