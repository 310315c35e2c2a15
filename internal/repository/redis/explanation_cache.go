package redis

import (
	"context"
	"time"

	"arbiter/internal/adapters/redis"
	"arbiter/internal/domain/explanation"
	"arbiter/pkg/errors"
)

// Compile-time check
var _ explanation.Cache = (*ExplanationCache)(nil)

// ExplanationCache caches rendered explanations keyed by the full parameter
// tuple (decision id, audience, detail level, counterfactual flag, format).
type ExplanationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewExplanationCache creates a new explanation cache
func NewExplanationCache(client *redis.Client, ttl time.Duration) *ExplanationCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &ExplanationCache{client: client, ttl: ttl}
}

// Get returns the cached explanation or (nil, nil) on a miss
func (c *ExplanationCache) Get(ctx context.Context, key explanation.Key) (*explanation.Explanation, error) {
	var exp explanation.Explanation
	if err := c.client.Get(ctx, key.CacheKey(), &exp); err != nil {
		if redis.IsMiss(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(errors.ErrDatabase, "explanation cache get: %v", err)
	}
	return &exp, nil
}

// Set stores an explanation under its key
func (c *ExplanationCache) Set(ctx context.Context, exp *explanation.Explanation) error {
	if err := c.client.Set(ctx, exp.Key.CacheKey(), exp, c.ttl); err != nil {
		return errors.Wrapf(errors.ErrDatabase, "explanation cache set: %v", err)
	}
	return nil
}
