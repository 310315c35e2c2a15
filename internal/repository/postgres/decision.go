package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"arbiter/internal/domain/decision"
	"arbiter/pkg/errors"
)

// Compile-time check
var _ decision.Repository = (*DecisionRepository)(nil)

// DecisionRepository implements decision.Repository using sqlx.
// The full decision aggregate is stored as a JSONB document with a few
// scalar columns for filtering.
type DecisionRepository struct {
	db *sqlx.DB
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *sqlx.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

type decisionRow struct {
	ID           uuid.UUID `db:"id"`
	DecisionType string    `db:"decision_type"`
	Mode         string    `db:"collaboration_mode"`
	Action       string    `db:"action"`
	Confidence   float64   `db:"confidence"`
	Document     []byte    `db:"document"`
	CreatedAt    time.Time `db:"created_at"`
}

// Create persists a finished decision. Inserting the same id twice is a
// no-op, keeping the write idempotent.
func (r *DecisionRepository) Create(ctx context.Context, d *decision.Decision) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "marshal decision")
	}

	query := `
		INSERT INTO decisions (
			id, decision_type, collaboration_mode, action, confidence, document, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		d.ID, d.DecisionType, d.Mode, d.Action, d.Confidence, doc, d.EndTime,
	)
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "insert decision: %v", err)
	}

	return nil
}

// GetByID retrieves a decision by id
func (r *DecisionRepository) GetByID(ctx context.Context, id uuid.UUID) (*decision.Decision, error) {
	var row decisionRow

	query := `SELECT * FROM decisions WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "decision %s", id)
		}
		return nil, errors.Wrapf(errors.ErrDatabase, "get decision: %v", err)
	}

	return unmarshalDecision(row.Document)
}

// ListByType retrieves recent decisions for a decision type
func (r *DecisionRepository) ListByType(ctx context.Context, decisionType string, limit int) ([]*decision.Decision, error) {
	var rows []decisionRow

	query := `
		SELECT * FROM decisions
		WHERE decision_type = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &rows, query, decisionType, limit); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "list decisions by type: %v", err)
	}

	return unmarshalDecisions(rows)
}

// ListRecent retrieves the most recent decisions across all types
func (r *DecisionRepository) ListRecent(ctx context.Context, limit int) ([]*decision.Decision, error) {
	var rows []decisionRow

	query := `
		SELECT * FROM decisions
		ORDER BY created_at DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "list recent decisions: %v", err)
	}

	return unmarshalDecisions(rows)
}

func unmarshalDecision(doc []byte) (*decision.Decision, error) {
	var d decision.Decision
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, errors.Wrap(err, "unmarshal decision document")
	}
	return &d, nil
}

func unmarshalDecisions(rows []decisionRow) ([]*decision.Decision, error) {
	out := make([]*decision.Decision, 0, len(rows))
	for _, row := range rows {
		d, err := unmarshalDecision(row.Document)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
