package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/benvon/datarest/internal/models"
	"github.com/benvon/datarest/internal/validation"
	"github.com/lib/pq"
)

// CrossOriginRepository stores per-resource CrossOrigin overrides. A NULL
// list column means the attribute is not set.
type CrossOriginRepository struct {
	db *DB
}

// NewCrossOriginRepository creates a new cross-origin config repository.
func NewCrossOriginRepository(db *DB) *CrossOriginRepository {
	return &CrossOriginRepository{db: db}
}

const crossOriginColumns = `resource, origins, allowed_headers, exposed_headers, methods, max_age, allow_credentials, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCrossOrigin(row rowScanner) (*models.CrossOriginConfig, error) {
	var (
		c                                  models.CrossOriginConfig
		origins, allowed, exposed, methods pq.StringArray
		maxAge                             int64
		credentials                        string
	)
	if err := row.Scan(&c.Resource, &origins, &allowed, &exposed, &methods, &maxAge, &credentials, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	meta := models.NewCrossOrigin()
	if origins != nil {
		meta.Origins = []string(origins)
	}
	if allowed != nil {
		meta.AllowedHeaders = []string(allowed)
	}
	if exposed != nil {
		meta.ExposedHeaders = []string(exposed)
	}
	if methods != nil {
		meta.Methods = []string(methods)
	}
	meta.MaxAge = maxAge
	meta.AllowCredentials = credentials
	c.CrossOrigin = meta
	return &c, nil
}

// Get returns the override for resource, or ErrNotFound.
func (r *CrossOriginRepository) Get(ctx context.Context, resource string) (*models.CrossOriginConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+crossOriginColumns+` FROM cross_origin_config WHERE resource = $1`, resource)
	c, err := scanCrossOrigin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cross origin config: %w", err)
	}
	return c, nil
}

// List returns every stored override ordered by resource.
func (r *CrossOriginRepository) List(ctx context.Context) ([]*models.CrossOriginConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+crossOriginColumns+` FROM cross_origin_config ORDER BY resource`)
	if err != nil {
		return nil, fmt.Errorf("list cross origin configs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.CrossOriginConfig
	for rows.Next() {
		c, err := scanCrossOrigin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cross origin config: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cross origin configs: %w", err)
	}
	return out, nil
}

// Set upserts the override for c.Resource after validating it.
func (r *CrossOriginRepository) Set(ctx context.Context, c *models.CrossOriginConfig) error {
	resource := strings.TrimSpace(c.Resource)
	if resource == "" {
		return fmt.Errorf("resource cannot be empty")
	}
	meta := c.CrossOrigin
	if meta == nil {
		meta = models.NewCrossOrigin()
	}
	if err := validation.ValidateCrossOrigin(meta); err != nil {
		return fmt.Errorf("invalid cross origin config: %w", err)
	}
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cross_origin_config (`+crossOriginColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (resource) DO UPDATE SET
			origins = EXCLUDED.origins,
			allowed_headers = EXCLUDED.allowed_headers,
			exposed_headers = EXCLUDED.exposed_headers,
			methods = EXCLUDED.methods,
			max_age = EXCLUDED.max_age,
			allow_credentials = EXCLUDED.allow_credentials,
			updated_at = EXCLUDED.updated_at
	`, resource,
		nullableArray(meta.Origins, models.AnyOrigin),
		nullableArray(meta.AllowedHeaders, models.AnyOrigin),
		nullableArray(meta.ExposedHeaders),
		nullableArray(meta.Methods),
		meta.MaxAge,
		meta.AllowCredentials,
		now, now)
	if err != nil {
		return fmt.Errorf("set cross origin config: %w", err)
	}
	return nil
}

// Delete removes the override for resource.
func (r *CrossOriginRepository) Delete(ctx context.Context, resource string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cross_origin_config WHERE resource = $1`, resource)
	if err != nil {
		return fmt.Errorf("delete cross origin config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cross origin config: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Overrides returns the stored overrides keyed by resource name.
func (r *CrossOriginRepository) Overrides(ctx context.Context) (map[string]*models.CrossOrigin, error) {
	configs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.CrossOrigin, len(configs))
	for _, c := range configs {
		out[c.Resource] = c.CrossOrigin
	}
	return out, nil
}

// nullableArray stores a list as NULL when it equals the unset sentinel.
func nullableArray(values []string, sentinel ...string) any {
	if len(values) == 0 || (len(sentinel) > 0 && slices.Equal(values, sentinel)) {
		return nil
	}
	return pq.Array(values)
}
