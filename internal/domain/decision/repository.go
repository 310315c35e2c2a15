package decision

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for decision persistence
type Repository interface {
	// Create persists a finished decision. Idempotent by id.
	Create(ctx context.Context, d *Decision) error

	// GetByID retrieves a decision by id
	GetByID(ctx context.Context, id uuid.UUID) (*Decision, error)

	// ListByType retrieves recent decisions for a decision type
	ListByType(ctx context.Context, decisionType string, limit int) ([]*Decision, error)

	// ListRecent retrieves the most recent decisions across all types
	ListRecent(ctx context.Context, limit int) ([]*Decision, error)
}
