package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"arbiter/internal/adapters/ai"
	"arbiter/internal/agents"
	"arbiter/internal/domain/decision"
	"arbiter/internal/domain/explanation"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

const maxFactors = 24

const factorFormat = `{
  "factors": [
    {"name": "short factor name", "description": "one sentence", "importance": 0.0}
  ]
}`

// factorExtractor pulls ranked contributing factors out of reasoning text
// via the model, with synthesized and fallback factors when extraction
// yields nothing.
type factorExtractor struct {
	client   ai.Client
	retryCfg retry.Config
	log      *logger.Logger
}

func newFactorExtractor(client ai.Client, retryCfg retry.Config) *factorExtractor {
	return &factorExtractor{
		client:   client,
		retryCfg: retryCfg,
		log:      logger.Get().With("component", "factor_extractor"),
	}
}

// Analyze extracts factors from the decision's own reasoning and from each
// agent contribution, one extraction per source, then ranks and truncates
// them to the detail level.
func (x *factorExtractor) Analyze(ctx context.Context, d *decision.Decision, detail explanation.DetailLevel) explanation.FactorAnalysis {
	var factors []explanation.Factor

	if d.Reasoning != "" {
		factors = append(factors, x.extract(ctx, "decision", d.Reasoning)...)
	}

	for _, agentType := range orderedAgents(d) {
		c := d.Contributions[agentType]
		if c.Reasoning == "" || c.IsErrorResponse {
			continue
		}
		factors = append(factors, x.extract(ctx, string(agentType), c.Reasoning)...)
	}

	if len(factors) == 0 {
		factors = synthesizeFactors(d)
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Importance > factors[j].Importance
	})

	limit := int(detail) * 3
	if limit < 3 {
		limit = 3
	}
	if limit > maxFactors {
		limit = maxFactors
	}
	if len(factors) > limit {
		factors = factors[:limit]
	}

	return explanation.FactorAnalysis{
		Factors:       factors,
		PrimaryFactor: factors[0],
	}
}

// extract runs one model extraction call over a single reasoning source.
// Failures degrade to one labeled fallback factor instead of propagating.
func (x *factorExtractor) extract(ctx context.Context, source, reasoning string) []explanation.Factor {
	prompt := fmt.Sprintf(
		"Extract the key factors that drove the following reasoning. Respond with JSON only, matching this shape:\n%s\n\nImportance is a value in [0,1]. Reasoning:\n%s",
		factorFormat, reasoning,
	)

	var resp *ai.GenerateResponse
	err := retry.Do(ctx, x.retryCfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = x.client.Generate(ctx, ai.GenerateRequest{
			SystemPrompt: "You extract decision factors from reasoning text and respond with JSON only.",
			Prompt:       prompt,
		})
		return callErr
	})
	if err != nil {
		x.log.Warnf("Factor extraction failed for source %s: %v", source, err)
		return []explanation.Factor{fallbackFactor(source)}
	}

	factors, err := parseFactors(resp.Text, source)
	if err != nil {
		x.log.Warnf("Unparsable factor extraction for source %s: %v", source, err)
		return []explanation.Factor{fallbackFactor(source)}
	}
	return factors
}

func parseFactors(text, source string) ([]explanation.Factor, error) {
	block, ok := agents.ExtractJSONBlock(text)
	if !ok {
		return nil, errors.Wrap(errors.ErrParsing, "no JSON block in factor response")
	}

	var payload struct {
		Factors []struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Importance  float64 `json:"importance"`
		} `json:"factors"`
	}
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return nil, errors.Wrapf(errors.ErrParsing, "malformed factor response: %v", err)
	}
	if len(payload.Factors) == 0 {
		return nil, errors.Wrap(errors.ErrParsing, "factor response empty")
	}

	out := make([]explanation.Factor, 0, len(payload.Factors))
	for _, f := range payload.Factors {
		if f.Name == "" {
			continue
		}
		importance := f.Importance
		if importance < 0 {
			importance = 0
		}
		if importance > 1 {
			importance = 1
		}
		out = append(out, explanation.Factor{
			Name:        f.Name,
			Description: f.Description,
			Importance:  importance,
			Source:      source,
		})
	}
	if len(out) == 0 {
		return nil, errors.Wrap(errors.ErrParsing, "factor response had no usable factors")
	}
	return out, nil
}

// synthesizeFactors builds plausible factors from decision metadata when
// extraction yields nothing.
func synthesizeFactors(d *decision.Decision) []explanation.Factor {
	factors := []explanation.Factor{
		{
			Name:        "decision_type",
			Description: fmt.Sprintf("The request was classified as a %s decision", d.DecisionType),
			Importance:  0.8,
			Source:      "metadata",
		},
		{
			Name:        "chosen_action",
			Description: fmt.Sprintf("The action %q was selected at confidence %.2f", d.Action, d.Confidence),
			Importance:  0.9,
			Source:      "metadata",
		},
	}
	if len(d.AlternativeActions) > 0 {
		factors = append(factors, explanation.Factor{
			Name:        "alternatives_considered",
			Description: fmt.Sprintf("%d alternative actions were considered and not selected", len(d.AlternativeActions)),
			Importance:  0.5,
			Source:      "metadata",
		})
	}
	if len(d.Conflicts) > 0 {
		factors = append(factors, explanation.Factor{
			Name:        "conflicts_resolved",
			Description: fmt.Sprintf("%d inter-agent conflicts were resolved through debate", len(d.Conflicts)),
			Importance:  0.6,
			Source:      "metadata",
		})
	}
	return factors
}

func fallbackFactor(source string) explanation.Factor {
	return explanation.Factor{
		Name:        "extraction_unavailable",
		Description: fmt.Sprintf("Factor extraction for source %q was unavailable", source),
		Importance:  0.1,
		Source:      source,
		IsFallback:  true,
	}
}

// orderedAgents returns the contribution keys in a stable order.
func orderedAgents(d *decision.Decision) []decision.AgentType {
	out := make([]decision.AgentType, 0, len(d.Contributions))
	for agentType := range d.Contributions {
		out = append(out, agentType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
