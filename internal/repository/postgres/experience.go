package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"arbiter/internal/domain/experience"
	"arbiter/pkg/errors"
)

// Compile-time check
var _ experience.Repository = (*ExperienceRepository)(nil)

// ExperienceRepository implements experience.Repository using sqlx
type ExperienceRepository struct {
	db *sqlx.DB
}

// NewExperienceRepository creates a new experience repository
func NewExperienceRepository(db *sqlx.DB) *ExperienceRepository {
	return &ExperienceRepository{db: db}
}

type experienceRow struct {
	ID            uuid.UUID       `db:"id"`
	StateFeatures []byte          `db:"state_features"`
	Action        string          `db:"action"`
	ActionIndex   int             `db:"action_index"`
	Context       []byte          `db:"context"`
	Reward        sql.NullFloat64 `db:"reward"`
	Priority      float64         `db:"priority"`
	CreatedAt     time.Time       `db:"created_at"`
	RewardedAt    *time.Time      `db:"rewarded_at"`
}

func (row *experienceRow) toEntity() (*experience.Experience, error) {
	exp := &experience.Experience{
		ID:          row.ID,
		Action:      row.Action,
		ActionIndex: row.ActionIndex,
		Priority:    row.Priority,
		CreatedAt:   row.CreatedAt,
		RewardedAt:  row.RewardedAt,
	}

	if err := json.Unmarshal(row.StateFeatures, &exp.StateFeatures); err != nil {
		return nil, errors.Wrap(err, "unmarshal state features")
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &exp.Context); err != nil {
			return nil, errors.Wrap(err, "unmarshal experience context")
		}
	}
	if row.Reward.Valid {
		reward := row.Reward.Float64
		exp.Reward = &reward
	}

	return exp, nil
}

// Create persists a new experience with a nil reward
func (r *ExperienceRepository) Create(ctx context.Context, exp *experience.Experience) error {
	features, err := json.Marshal(exp.StateFeatures)
	if err != nil {
		return errors.Wrap(err, "marshal state features")
	}

	var contextDoc []byte
	if exp.Context != nil {
		contextDoc, err = json.Marshal(exp.Context)
		if err != nil {
			return errors.Wrap(err, "marshal experience context")
		}
	}

	query := `
		INSERT INTO experiences (
			id, state_features, action, action_index, context, priority, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		exp.ID, features, exp.Action, exp.ActionIndex, contextDoc, exp.Priority, exp.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "insert experience: %v", err)
	}

	return nil
}

// GetByID retrieves an experience by id
func (r *ExperienceRepository) GetByID(ctx context.Context, id uuid.UUID) (*experience.Experience, error) {
	var row experienceRow

	query := `SELECT * FROM experiences WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(errors.ErrNotFound, "experience %s", id)
		}
		return nil, errors.Wrapf(errors.ErrDatabase, "get experience: %v", err)
	}

	return row.toEntity()
}

// SetReward records the observed reward and priority. The guard on a null
// reward keeps the mutation single-shot.
func (r *ExperienceRepository) SetReward(ctx context.Context, id uuid.UUID, reward float64, priority float64) error {
	query := `
		UPDATE experiences
		SET reward = $2, priority = $3, rewarded_at = NOW()
		WHERE id = $1 AND reward IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, reward, priority)
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "set experience reward: %v", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(errors.ErrDatabase, "set experience reward: %v", err)
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "unrewarded experience %s", id)
	}

	return nil
}

// ListRewarded retrieves experiences with an observed reward, newest first
func (r *ExperienceRepository) ListRewarded(ctx context.Context, limit int) ([]*experience.Experience, error) {
	var rows []experienceRow

	query := `
		SELECT * FROM experiences
		WHERE reward IS NOT NULL
		ORDER BY rewarded_at DESC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "list rewarded experiences: %v", err)
	}

	out := make([]*experience.Experience, 0, len(rows))
	for i := range rows {
		exp, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}

	return out, nil
}
