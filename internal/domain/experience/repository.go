package experience

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the durable mirror of the in-memory experience buffer.
// Writes are independent and idempotent by id.
type Repository interface {
	// Create persists a new experience with a nil reward
	Create(ctx context.Context, exp *Experience) error

	// GetByID retrieves an experience by id
	GetByID(ctx context.Context, id uuid.UUID) (*Experience, error)

	// SetReward records the observed reward and sampling priority.
	// The mutation is applied at most once per experience.
	SetReward(ctx context.Context, id uuid.UUID, reward float64, priority float64) error

	// ListRewarded retrieves experiences with an observed reward, newest first
	ListRewarded(ctx context.Context, limit int) ([]*Experience, error)
}
