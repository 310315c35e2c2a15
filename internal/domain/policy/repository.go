package policy

import (
	"context"
)

// Repository persists policy model snapshots
type Repository interface {
	// Save stores a snapshot, replacing any older version of the same model
	Save(ctx context.Context, snap *ModelSnapshot) error

	// Load retrieves the latest snapshot for a model name.
	// Returns errors.ErrNotFound if none exists.
	Load(ctx context.Context, name string) (*ModelSnapshot, error)
}
