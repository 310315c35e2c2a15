package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"arbiter/internal/domain/policy"
	"arbiter/pkg/errors"
)

// Compile-time check
var _ policy.Repository = (*PolicyModelRepository)(nil)

// PolicyModelRepository stores policy model snapshots
type PolicyModelRepository struct {
	db *sqlx.DB
}

// NewPolicyModelRepository creates a new policy model repository
func NewPolicyModelRepository(db *sqlx.DB) *PolicyModelRepository {
	return &PolicyModelRepository{db: db}
}

// Save upserts the snapshot for a model name
func (r *PolicyModelRepository) Save(ctx context.Context, snap *policy.ModelSnapshot) error {
	query := `
		INSERT INTO policy_models (name, version, weights, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name) DO UPDATE
		SET version = EXCLUDED.version,
		    weights = EXCLUDED.weights,
		    updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, snap.Name, snap.Version, snap.Weights); err != nil {
		return errors.Wrapf(errors.ErrDatabase, "save policy model: %v", err)
	}

	return nil
}

// Load retrieves the latest snapshot for a model name
func (r *PolicyModelRepository) Load(ctx context.Context, name string) (*policy.ModelSnapshot, error) {
	var snap policy.ModelSnapshot

	query := `SELECT name, version, weights, updated_at FROM policy_models WHERE name = $1`

	if err := r.db.GetContext(ctx, &snap, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "policy model %s", name)
		}
		return nil, errors.Wrapf(errors.ErrDatabase, "load policy model: %v", err)
	}

	return &snap, nil
}
