package policy

import (
	"math"
	"math/rand"

	"github.com/google/uuid"

	"arbiter/internal/domain/experience"
)

// SetRewardResult reports how SetReward handled a reward observation.
type SetRewardResult int

const (
	// RewardApplied means the reward was recorded on a buffered experience.
	RewardApplied SetRewardResult = iota
	// RewardAlreadySet means the experience was rewarded earlier. Duplicate
	// outcome deliveries land here.
	RewardAlreadySet
	// RewardUnknown means no buffered experience has the given id.
	RewardUnknown
)

// Buffer is a bounded ring of experiences with prioritized sampling.
// It is not safe for concurrent use; the engine serializes access.
type Buffer struct {
	capacity int
	items    []*experience.Experience
	byID     map[uuid.UUID]int
	next     int
	rewarded int
}

// NewBuffer creates an experience buffer with the given capacity
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Buffer{
		capacity: capacity,
		items:    make([]*experience.Experience, 0, capacity),
		byID:     make(map[uuid.UUID]int),
	}
}

// Add inserts an experience, evicting the oldest entry on overflow. An
// experience whose id is already buffered is replaced in place rather than
// stored twice.
func (b *Buffer) Add(exp *experience.Experience) {
	if i, ok := b.byID[exp.ID]; ok {
		if b.items[i].Rewarded() {
			b.rewarded--
		}
		b.items[i] = exp
	} else if len(b.items) < b.capacity {
		b.byID[exp.ID] = len(b.items)
		b.items = append(b.items, exp)
	} else {
		evicted := b.items[b.next]
		delete(b.byID, evicted.ID)
		if evicted.Rewarded() {
			b.rewarded--
		}
		b.items[b.next] = exp
		b.byID[exp.ID] = b.next
		b.next = (b.next + 1) % b.capacity
	}
	if exp.Rewarded() {
		b.rewarded++
	}
}

// Get returns the buffered experience with the given id, or nil.
func (b *Buffer) Get(id uuid.UUID) *experience.Experience {
	if i, ok := b.byID[id]; ok {
		return b.items[i]
	}
	return nil
}

// SetReward records the observed reward and priority on a buffered
// experience. An experience that was rewarded earlier is left untouched so
// repeated outcome deliveries cannot inflate the rewarded count.
func (b *Buffer) SetReward(id uuid.UUID, reward, priority float64) SetRewardResult {
	i, ok := b.byID[id]
	if !ok {
		return RewardUnknown
	}
	exp := b.items[i]
	if exp.Rewarded() {
		return RewardAlreadySet
	}
	exp.Reward = &reward
	exp.Priority = priority
	b.rewarded++
	return RewardApplied
}

// Len returns the number of buffered experiences.
func (b *Buffer) Len() int {
	return len(b.items)
}

// RewardedCount returns the number of experiences with an observed reward.
func (b *Buffer) RewardedCount() int {
	return b.rewarded
}

// Sample draws up to n rewarded experiences without replacement, with
// selection probability proportional to priority^alpha.
func (b *Buffer) Sample(n int, alpha float64, rng *rand.Rand) []*experience.Experience {
	pool := make([]*experience.Experience, 0, b.rewarded)
	weights := make([]float64, 0, b.rewarded)
	for _, exp := range b.items {
		if !exp.Rewarded() {
			continue
		}
		pool = append(pool, exp)
		weights = append(weights, math.Pow(math.Max(exp.Priority, 1e-9), alpha))
	}

	if n > len(pool) {
		n = len(pool)
	}
	if n == 0 {
		return nil
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}

	batch := make([]*experience.Experience, 0, n)
	for len(batch) < n {
		r := rng.Float64() * total
		picked := len(pool) - 1
		for i, w := range weights {
			r -= w
			if r <= 0 {
				picked = i
				break
			}
		}

		batch = append(batch, pool[picked])
		total -= weights[picked]

		last := len(pool) - 1
		pool[picked], weights[picked] = pool[last], weights[last]
		pool = pool[:last]
		weights = weights[:last]
	}

	return batch
}
