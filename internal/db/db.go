package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS enrollments (
	id          BIGSERIAL PRIMARY KEY,
	student_id  VARCHAR(64) NOT NULL,
	course_id   VARCHAR(64) NOT NULL,
	status      VARCHAR(20) NOT NULL DEFAULT 'PENDING',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_enrollments_student_id ON enrollments (student_id);
CREATE INDEX IF NOT EXISTS ix_enrollments_course_id ON enrollments (course_id);

CREATE TABLE IF NOT EXISTS outbox (
	id           UUID PRIMARY KEY,
	aggregate_id BIGINT NOT NULL,
	routing_key  TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	attempts     INT NOT NULL DEFAULT 0,
	last_error   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_outbox_created_at ON outbox (created_at);
`

// Migrate creates the tables this service owns. Safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
