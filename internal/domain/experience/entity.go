package experience

import (
	"time"

	"github.com/google/uuid"
)

// Experience is one (state, action, reward) tuple used to train the policy.
// Created at recommendation time with a nil reward; the reward is set exactly
// once when the outcome is reported.
type Experience struct {
	ID            uuid.UUID              `json:"id"`
	StateFeatures []float64              `json:"state_features"`
	Action        string                 `json:"action"`
	ActionIndex   int                    `json:"action_index"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Reward        *float64               `json:"reward,omitempty"`
	Priority      float64                `json:"priority"`
	CreatedAt     time.Time              `json:"created_at"`
	RewardedAt    *time.Time             `json:"rewarded_at,omitempty"`
}

// Rewarded reports whether an outcome has been observed for this experience.
func (e *Experience) Rewarded() bool {
	return e.Reward != nil
}

// Outcome is the observed result of a past decision as reported by the
// caller or an outcome event. Reward strategies read the fields they know
// about and treat missing ones as zero contribution.
type Outcome map[string]interface{}

// Float reads a numeric outcome field, tolerating json.Unmarshal number
// representations. Missing or non-numeric fields read as zero.
func (o Outcome) Float(key string) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool reads a boolean outcome field; missing fields read as false.
func (o Outcome) Bool(key string) bool {
	v, _ := o[key].(bool)
	return v
}
