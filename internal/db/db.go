// Package db provides PostgreSQL-backed persistence for skill grades,
// versions and improvement requests.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// schema creates the record tables. The partial unique index keeps at most
// one active version per skill; the (skill_id, version) key keeps version
// numbers unique.
const schema = `
CREATE TABLE IF NOT EXISTS skill_grades (
	seq              BIGSERIAL PRIMARY KEY,
	id               TEXT NOT NULL UNIQUE,
	skill_id         TEXT NOT NULL,
	skill_version_id TEXT NOT NULL,
	graded_at        TIMESTAMPTZ NOT NULL,
	content          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS skill_grades_version_idx ON skill_grades (skill_id, skill_version_id);

CREATE TABLE IF NOT EXISTS skill_versions (
	id        TEXT PRIMARY KEY,
	skill_id  TEXT NOT NULL,
	version   INTEGER NOT NULL,
	is_active BOOLEAN NOT NULL,
	position  INTEGER NOT NULL,
	content   JSONB NOT NULL,
	UNIQUE (skill_id, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS skill_versions_one_active_idx ON skill_versions (skill_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS improvement_requests (
	id           TEXT PRIMARY KEY,
	skill_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	triggered_at TIMESTAMPTZ NOT NULL,
	position     INTEGER NOT NULL,
	content      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS improvement_requests_skill_idx ON improvement_requests (skill_id, status);
`

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
