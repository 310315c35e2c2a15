package explanation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audience selects the phrasing register of the generated narrative.
type Audience string

const (
	AudienceBusiness  Audience = "business"
	AudienceTechnical Audience = "technical"
	AudienceExecutive Audience = "executive"
	AudienceCustomer  Audience = "customer"
)

// DetailLevel scales how much of the analysis is surfaced.
type DetailLevel int

const (
	DetailMinimal DetailLevel = iota + 1
	DetailStandard
	DetailDetailed
	DetailComprehensive
)

// Format selects the output rendering of an explanation.
type Format string

const (
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Key identifies one cacheable explanation variant.
type Key struct {
	DecisionID      uuid.UUID
	Audience        Audience
	Detail          DetailLevel
	Counterfactuals bool
	Format          Format
}

// CacheKey renders the full parameter tuple as a cache key.
func (k Key) CacheKey() string {
	return fmt.Sprintf("explanation:%s:%s:%d:%t:%s",
		k.DecisionID, k.Audience, k.Detail, k.Counterfactuals, k.Format)
}

// Factor is one contributing factor extracted from decision reasoning.
type Factor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Importance  float64 `json:"importance"`
	Source      string  `json:"source"`
	IsFallback  bool    `json:"is_fallback,omitempty"`
}

// FactorAnalysis ranks the contributing factors behind a decision.
type FactorAnalysis struct {
	Factors       []Factor `json:"factors"`
	PrimaryFactor Factor   `json:"primary_factor"`
}

// ConfidenceAnalysis summarizes confidence statistics across the decision
// and its per-agent contributions.
type ConfidenceAnalysis struct {
	Overall          float64            `json:"overall"`
	Min              float64            `json:"min"`
	Max              float64            `json:"max"`
	Avg              float64            `json:"avg"`
	StdDev           float64            `json:"std_dev"`
	UncertaintyLevel float64            `json:"uncertainty_level"`
	Label            string             `json:"label"`
	PerAgent         map[string]float64 `json:"per_agent,omitempty"`
}

// Counterfactual describes how the decision would have changed under an
// alternative action.
type Counterfactual struct {
	Action          string  `json:"action"`
	ExpectedOutcome string  `json:"expected_outcome"`
	Plausibility    float64 `json:"plausibility"`
}

// TraceStep is one reconstructed step of the decision process.
type TraceStep struct {
	Index     int                    `json:"index"`
	Name      string                 `json:"name"`
	Timestamp time.Time              `json:"timestamp"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// Explanation is a derived, cacheable view over a persisted decision.
type Explanation struct {
	ID              uuid.UUID          `json:"id"`
	Key             Key                `json:"key"`
	Factors         FactorAnalysis     `json:"factor_analysis"`
	Confidence      ConfidenceAnalysis `json:"confidence_analysis"`
	Narrative       string             `json:"explanation"`
	Counterfactuals []Counterfactual   `json:"counterfactual_analysis,omitempty"`
	Trace           []TraceStep        `json:"decision_trace"`
	Rendered        string             `json:"rendered"`
	GeneratedAt     time.Time          `json:"generated_at"`
}
