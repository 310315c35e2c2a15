package explanation

import (
	"context"
)

// Cache stores rendered explanations keyed by the full parameter tuple.
type Cache interface {
	// Get returns the cached explanation or (nil, nil) on a miss
	Get(ctx context.Context, key Key) (*Explanation, error)

	// Set stores an explanation under its key
	Set(ctx context.Context, exp *Explanation) error
}

// Repository persists generated explanations for audit. Idempotent by id.
type Repository interface {
	Create(ctx context.Context, exp *Explanation) error
}
