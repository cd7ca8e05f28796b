package database

import (
	"context"

	"github.com/benvon/datarest/internal/models"
	"github.com/google/uuid"
)

// EntityStore defines the repository operations the HAL handlers invoke.
// This interface enables better testability by allowing mock implementations
type EntityStore interface {
	FindAll(ctx context.Context, resource string, page, size int) ([]*models.Entity, int, error)
	FindByID(ctx context.Context, resource string, id uuid.UUID) (*models.Entity, error)
	Save(ctx context.Context, e *models.Entity) error
	Delete(ctx context.Context, resource string, id uuid.UUID) error
}

// CrossOriginStore defines the operations the route table reloader needs
type CrossOriginStore interface {
	Overrides(ctx context.Context) (map[string]*models.CrossOrigin, error)
}

// Ensure concrete types implement the interfaces
var (
	_ EntityStore      = (*EntityRepository)(nil)
	_ CrossOriginStore = (*CrossOriginRepository)(nil)
)
