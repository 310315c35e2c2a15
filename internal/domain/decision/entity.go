package decision

import (
	"time"

	"github.com/google/uuid"

	"arbiter/pkg/errors"
)

// CollaborationMode governs how agent contributions are gathered and merged.
type CollaborationMode string

const (
	ModeSequential   CollaborationMode = "sequential"
	ModeParallel     CollaborationMode = "parallel"
	ModeHierarchical CollaborationMode = "hierarchical"
	ModeConsensus    CollaborationMode = "consensus"
)

// Valid reports whether the mode is one of the supported protocols.
func (m CollaborationMode) Valid() bool {
	switch m {
	case ModeSequential, ModeParallel, ModeHierarchical, ModeConsensus:
		return true
	}
	return false
}

// AgentType enumerates the specialized reasoning roles.
type AgentType string

const (
	AgentStrategy   AgentType = "strategy"
	AgentEthics     AgentType = "ethics"
	AgentRisk       AgentType = "risk"
	AgentFinance    AgentType = "finance"
	AgentMarketing  AgentType = "marketing"
	AgentOperations AgentType = "operations"
)

// Request is a structured decision request entering the orchestrator.
type Request struct {
	DecisionType string                 `json:"decision_type"`
	Context      map[string]interface{} `json:"context"`
	Constraints  map[string]interface{} `json:"constraints,omitempty"`
	AgentSet     []AgentType            `json:"agent_set,omitempty"`
	Mode         CollaborationMode      `json:"collaboration_mode,omitempty"`
}

// Validate checks the mandatory request fields.
func (r *Request) Validate() error {
	if r.DecisionType == "" {
		return errors.NewValidationError("decision_type", "is required", r.DecisionType)
	}
	if len(r.Context) == 0 {
		return errors.NewValidationError("context", "is required", r.Context)
	}
	if r.Mode != "" && !r.Mode.Valid() {
		return errors.NewValidationError("collaboration_mode", "unknown mode", string(r.Mode))
	}
	return nil
}

// Contribution is one agent's proposed action for a decision round.
// Immutable after creation.
type Contribution struct {
	AgentType          AgentType              `json:"agent_type"`
	Action             string                 `json:"action"`
	Confidence         float64                `json:"confidence"`
	Reasoning          string                 `json:"reasoning"`
	AlternativeActions []string               `json:"alternative_actions,omitempty"`
	Considerations     map[string]interface{} `json:"considerations,omitempty"`
	IsErrorResponse    bool                   `json:"is_error_response,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

// ConflictType classifies a detected disagreement between contributions.
type ConflictType string

const (
	ConflictActionDisagreement     ConflictType = "action_disagreement"
	ConflictConfidenceDisagreement ConflictType = "confidence_disagreement"
)

// Conflict records a disagreement raised during one collaboration run.
// For action disagreements Sides maps each disputed action to the agents
// backing it. For confidence disagreements Action names the shared action
// and Confidences carries the per-agent values behind the spread.
type Conflict struct {
	ID          string                `json:"id"`
	Type        ConflictType          `json:"type"`
	Actions     []string              `json:"actions"`
	Sides       map[string][]AgentType `json:"sides,omitempty"`
	Spread      float64               `json:"spread,omitempty"`
	Confidences map[AgentType]float64 `json:"confidences,omitempty"`
}

// Resolution is the debate outcome for one conflict.
type Resolution struct {
	ConflictID        string               `json:"conflict_id"`
	Resolution        string               `json:"resolution"`
	RecommendedAction string               `json:"recommended_action"`
	Confidence        float64              `json:"confidence"`
	AgentFeedback     map[AgentType]string `json:"agent_feedback,omitempty"`
	IsFallback        bool                 `json:"is_fallback,omitempty"`
}

// Decision is the aggregate result of one collaboration run. It is persisted
// once and read many times by the explainability engine.
type Decision struct {
	ID                 uuid.UUID                   `json:"id"`
	DecisionType       string                      `json:"decision_type"`
	Mode               CollaborationMode           `json:"collaboration_mode"`
	Action             string                      `json:"action"`
	Confidence         float64                     `json:"confidence"`
	Reasoning          string                      `json:"reasoning"`
	AlternativeActions []string                    `json:"alternative_actions,omitempty"`
	Contributions      map[AgentType]*Contribution `json:"agent_contributions"`
	Conflicts          []Conflict                  `json:"conflicts,omitempty"`
	Resolutions        []Resolution                `json:"resolutions,omitempty"`
	Context            map[string]interface{}      `json:"context"`
	Constraints        map[string]interface{}      `json:"constraints,omitempty"`
	StartTime          time.Time                   `json:"start_time"`
	EndTime            time.Time                   `json:"end_time"`
}
