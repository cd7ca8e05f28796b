package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the Postgres connection pool.
type DB struct {
	*sql.DB
}

// New opens a Postgres connection pool and verifies it with a ping.
func New(databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: sqlDB}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	resource   TEXT        NOT NULL,
	id         UUID        NOT NULL,
	body       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (resource, id)
);

CREATE INDEX IF NOT EXISTS entities_resource_created_idx ON entities (resource, created_at);

CREATE TABLE IF NOT EXISTS cross_origin_config (
	resource          TEXT PRIMARY KEY,
	origins           TEXT[],
	allowed_headers   TEXT[],
	exposed_headers   TEXT[],
	methods           TEXT[],
	max_age           BIGINT      NOT NULL DEFAULT -1,
	allow_credentials TEXT        NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ratelimit_config (
	config_key TEXT PRIMARY KEY,
	rate       TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables the service needs if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
