package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"arbiter/internal/domain/explanation"
	"arbiter/pkg/errors"
)

// Compile-time check
var _ explanation.Repository = (*ExplanationRepository)(nil)

// ExplanationRepository persists generated explanations for audit
type ExplanationRepository struct {
	db *sqlx.DB
}

// NewExplanationRepository creates a new explanation repository
func NewExplanationRepository(db *sqlx.DB) *ExplanationRepository {
	return &ExplanationRepository{db: db}
}

// Create stores an explanation. Idempotent by id.
func (r *ExplanationRepository) Create(ctx context.Context, exp *explanation.Explanation) error {
	doc, err := json.Marshal(exp)
	if err != nil {
		return errors.Wrap(err, "marshal explanation")
	}

	query := `
		INSERT INTO explanations (
			id, decision_id, audience, detail_level, counterfactuals, format, document, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		exp.ID, exp.Key.DecisionID, exp.Key.Audience, exp.Key.Detail,
		exp.Key.Counterfactuals, exp.Key.Format, doc, exp.GeneratedAt,
	)
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "insert explanation: %v", err)
	}

	return nil
}
