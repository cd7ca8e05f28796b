package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/datarest/internal/models"
)

// DefaultRatelimitScope is the scope whose rate applies to resources without their own.
const DefaultRatelimitScope = "default"

// RatelimitConfigRepository handles rate limit configuration in the database.
// Rates are stored per scope: DefaultRatelimitScope or a resource name.
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new ratelimit config repository.
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get retrieves the rate for scope, or nil when none is stored.
func (r *RatelimitConfigRepository) Get(ctx context.Context, scope string) (*models.RatelimitConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, scopeKey(scope))
	c := &models.RatelimitConfig{}
	err := row.Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ratelimit config: %w", err)
	}
	return c, nil
}

// List returns every stored rate keyed by scope.
func (r *RatelimitConfigRepository) List(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT config_key, rate FROM ratelimit_config`)
	if err != nil {
		return nil, fmt.Errorf("list ratelimit configs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	out := make(map[string]string)
	for rows.Next() {
		var key, rate string
		if err := rows.Scan(&key, &rate); err != nil {
			return nil, fmt.Errorf("scan ratelimit config: %w", err)
		}
		out[key] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratelimit configs: %w", err)
	}
	return out, nil
}

// Set upserts the rate for c.ConfigKey. Rate format: e.g. "5-S", "100-M".
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`, scopeKey(c.ConfigKey), rate, now, now)
	if err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	return nil
}

func scopeKey(scope string) string {
	if s := strings.TrimSpace(scope); s != "" {
		return s
	}
	return DefaultRatelimitScope
}
