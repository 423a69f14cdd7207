package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateStories, downCreateStories)
}

func upCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS stories (
		position        SERIAL,
		id              VARCHAR PRIMARY KEY,
		type            VARCHAR NOT NULL CHECK (type IN ('image', 'video')),
		url             VARCHAR NOT NULL,
		duration_ms     BIGINT,
		user_id         VARCHAR NOT NULL,
		user_name       VARCHAR NOT NULL DEFAULT '',
		user_avatar_url VARCHAR NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS stories_position_idx ON stories (position);
	`)
	return err
}

func downCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS stories;`)
	return err
}
