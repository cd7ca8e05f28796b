package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/datarest/internal/models"
	"github.com/google/uuid"
)

// EntityRepository stores JSON documents for every exported resource in one table.
type EntityRepository struct {
	db *DB
}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository(db *DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// FindAll returns a page of entities for resource ordered by creation time,
// together with the total count.
func (r *EntityRepository) FindAll(ctx context.Context, resource string, page, size int) ([]*models.Entity, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE resource = $1`, resource).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, body, created_at, updated_at
		FROM entities
		WHERE resource = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, resource, size, page*size)
	if err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entities := make([]*models.Entity, 0, size)
	for rows.Next() {
		e := &models.Entity{Resource: resource}
		var body []byte
		if err := rows.Scan(&e.ID, &body, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan entity: %w", err)
		}
		e.Body = json.RawMessage(body)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, total, nil
}

// FindByID returns one entity, or ErrNotFound.
func (r *EntityRepository) FindByID(ctx context.Context, resource string, id uuid.UUID) (*models.Entity, error) {
	e := &models.Entity{Resource: resource}
	var body []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, body, created_at, updated_at
		FROM entities
		WHERE resource = $1 AND id = $2
	`, resource, id).Scan(&e.ID, &body, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	e.Body = json.RawMessage(body)
	return e, nil
}

// Save inserts or replaces an entity. A nil ID is assigned a new one.
func (r *EntityRepository) Save(ctx context.Context, e *models.Entity) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if !json.Valid(e.Body) {
		return fmt.Errorf("entity body is not valid JSON")
	}
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO entities (resource, id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (resource, id) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, e.Resource, e.ID, []byte(e.Body), now).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	return nil
}

// Delete removes an entity, returning ErrNotFound when it does not exist.
func (r *EntityRepository) Delete(ctx context.Context, resource string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE resource = $1 AND id = $2`, resource, id)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
