package explain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"arbiter/internal/domain/decision"
	"arbiter/internal/domain/explanation"
	"arbiter/internal/testsupport"
	"arbiter/pkg/errors"
	"arbiter/pkg/retry"
)

// memoryDecisionRepo is an in-memory decision.Repository for tests.
type memoryDecisionRepo struct {
	mu        sync.Mutex
	decisions map[uuid.UUID]*decision.Decision
}

func newMemoryDecisionRepo(decisions ...*decision.Decision) *memoryDecisionRepo {
	r := &memoryDecisionRepo{decisions: make(map[uuid.UUID]*decision.Decision)}
	for _, d := range decisions {
		r.decisions[d.ID] = d
	}
	return r
}

func (r *memoryDecisionRepo) Create(ctx context.Context, d *decision.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions[d.ID] = d
	return nil
}

func (r *memoryDecisionRepo) GetByID(ctx context.Context, id uuid.UUID) (*decision.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.decisions[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "decision %s", id)
	}
	return d, nil
}

func (r *memoryDecisionRepo) ListByType(ctx context.Context, decisionType string, limit int) ([]*decision.Decision, error) {
	return nil, nil
}

func (r *memoryDecisionRepo) ListRecent(ctx context.Context, limit int) ([]*decision.Decision, error) {
	return nil, nil
}

// memoryCache is an in-memory explanation.Cache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*explanation.Explanation
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*explanation.Explanation)}
}

func (c *memoryCache) Get(ctx context.Context, key explanation.Key) (*explanation.Explanation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.entries[key.CacheKey()]
	if !ok {
		return nil, nil
	}
	c.hits++
	return exp, nil
}

func (c *memoryCache) Set(ctx context.Context, exp *explanation.Explanation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[exp.Key.CacheKey()] = exp
	return nil
}

func factorsJSON(importances ...float64) string {
	parts := make([]string, 0, len(importances))
	for i, imp := range importances {
		parts = append(parts, fmt.Sprintf(`{"name": "factor_%d", "description": "signal %d", "importance": %.2f}`, i, i, imp))
	}
	return fmt.Sprintf(`{"factors": [%s]}`, strings.Join(parts, ", "))
}

func sampleDecision() *decision.Decision {
	start := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	return &decision.Decision{
		ID:           uuid.New(),
		DecisionType: "lead_qualification",
		Mode:         decision.ModeConsensus,
		Action:       "qualify_lead",
		Confidence:   0.85,
		Reasoning:    "[marketing] strong fit [risk] acceptable exposure",
		AlternativeActions: []string{
			"nurture_lead",
			"disqualify_lead",
		},
		Contributions: map[decision.AgentType]*decision.Contribution{
			decision.AgentMarketing: {
				AgentType:  decision.AgentMarketing,
				Action:     "qualify_lead",
				Confidence: 0.85,
				Reasoning:  "strong fit",
			},
			decision.AgentRisk: {
				AgentType:  decision.AgentRisk,
				Action:     "nurture_lead",
				Confidence: 0.6,
				Reasoning:  "acceptable exposure",
			},
		},
		Context:   map[string]interface{}{"leadId": "L1"},
		StartTime: start,
		EndTime:   start.Add(10 * time.Second),
	}
}

func scriptedAI() *testsupport.FakeAI {
	return testsupport.NewFakeAI().
		Respond("You extract decision factors", factorsJSON(0.9, 0.4, 0.7)).
		Respond("You explain automated decisions", "The lead was qualified because the fit is strong.")
}

func TestExplain_UnknownDecision(t *testing.T) {
	e := NewEngine(newMemoryDecisionRepo(), nil, nil, scriptedAI(), retry.DefaultConfig())

	_, err := e.Explain(context.Background(), explanation.Key{DecisionID: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestExplain_GeneratesExplanation(t *testing.T) {
	d := sampleDecision()
	e := NewEngine(newMemoryDecisionRepo(d), nil, nil, scriptedAI(), retry.DefaultConfig())

	exp, err := e.Explain(context.Background(), explanation.Key{
		DecisionID: d.ID,
		Audience:   explanation.AudienceTechnical,
		Detail:     explanation.DetailDetailed,
		Format:     explanation.FormatText,
	})
	require.NoError(t, err)

	assert.Equal(t, "The lead was qualified because the fit is strong.", exp.Narrative)
	assert.NotEmpty(t, exp.Factors.Factors)
	assert.Equal(t, exp.Factors.Factors[0], exp.Factors.PrimaryFactor)
	assert.Equal(t, "High", exp.Confidence.Label)
	assert.Empty(t, exp.Counterfactuals)
	assert.Contains(t, exp.Rendered, "Confidence: High (0.85)")

	// Factors arrive ranked by importance.
	for i := 1; i < len(exp.Factors.Factors); i++ {
		assert.GreaterOrEqual(t, exp.Factors.Factors[i-1].Importance, exp.Factors.Factors[i].Importance)
	}
}

func TestExplain_DefaultsApplied(t *testing.T) {
	d := sampleDecision()
	e := NewEngine(newMemoryDecisionRepo(d), nil, nil, scriptedAI(), retry.DefaultConfig())

	exp, err := e.Explain(context.Background(), explanation.Key{DecisionID: d.ID})
	require.NoError(t, err)

	assert.Equal(t, explanation.AudienceBusiness, exp.Key.Audience)
	assert.Equal(t, explanation.DetailStandard, exp.Key.Detail)
	assert.Equal(t, explanation.FormatText, exp.Key.Format)
}

func TestExplain_CachesByFullKey(t *testing.T) {
	d := sampleDecision()
	cache := newMemoryCache()
	e := NewEngine(newMemoryDecisionRepo(d), cache, nil, scriptedAI(), retry.DefaultConfig())

	key := explanation.Key{
		DecisionID: d.ID,
		Audience:   explanation.AudienceBusiness,
		Detail:     explanation.DetailStandard,
		Format:     explanation.FormatText,
	}

	first, err := e.Explain(context.Background(), key)
	require.NoError(t, err)

	second, err := e.Explain(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.ID, second.ID)

	// A different audience misses the cache and regenerates.
	other := key
	other.Audience = explanation.AudienceExecutive
	third, err := e.Explain(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestExplain_FactorTruncationByDetail(t *testing.T) {
	d := sampleDecision()
	// Each of the three reasoning sources yields four factors.
	fake := testsupport.NewFakeAI().
		Respond("You extract decision factors", factorsJSON(0.9, 0.8, 0.7, 0.6)).
		Respond("You explain automated decisions", "narrative")

	e := NewEngine(newMemoryDecisionRepo(d), nil, nil, fake, retry.DefaultConfig())

	minimal, err := e.Explain(context.Background(), explanation.Key{
		DecisionID: d.ID,
		Detail:     explanation.DetailMinimal,
	})
	require.NoError(t, err)
	assert.Len(t, minimal.Factors.Factors, 3)

	comprehensive, err := e.Explain(context.Background(), explanation.Key{
		DecisionID: d.ID,
		Detail:     explanation.DetailComprehensive,
	})
	require.NoError(t, err)
	assert.Len(t, comprehensive.Factors.Factors, 12)
}

func TestExplain_CounterfactualsOnlyWhenRequested(t *testing.T) {
	d := sampleDecision()
	e := NewEngine(newMemoryDecisionRepo(d), nil, nil, scriptedAI(), retry.DefaultConfig())

	exp, err := e.Explain(context.Background(), explanation.Key{
		DecisionID:      d.ID,
		Counterfactuals: true,
	})
	require.NoError(t, err)

	require.Len(t, exp.Counterfactuals, 2)
	assert.Equal(t, "nurture_lead", exp.Counterfactuals[0].Action)
	assert.InDelta(t, 0.15, exp.Counterfactuals[0].Plausibility, 1e-9)
	assert.InDelta(t, 0.075, exp.Counterfactuals[1].Plausibility, 1e-9)
	// The risk agent proposed nurture_lead during the run.
	assert.Contains(t, exp.Counterfactuals[0].ExpectedOutcome, "1 agent(s)")
}

func TestExplain_TraceElidesDetailAtMinimal(t *testing.T) {
	d := sampleDecision()
	e := NewEngine(newMemoryDecisionRepo(d), nil, nil, scriptedAI(), retry.DefaultConfig())

	minimal, err := e.Explain(context.Background(), explanation.Key{
		DecisionID: d.ID,
		Detail:     explanation.DetailMinimal,
	})
	require.NoError(t, err)

	names := make([]string, 0, len(minimal.Trace))
	for _, step := range minimal.Trace {
		assert.Nil(t, step.Detail)
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{"initialization", "context_processing", "final_decision"}, names)

	standard, err := e.Explain(context.Background(), explanation.Key{
		DecisionID: d.ID,
		Detail:     explanation.DetailStandard,
	})
	require.NoError(t, err)

	names = names[:0]
	for i, step := range standard.Trace {
		assert.Equal(t, i, step.Index)
		assert.NotNil(t, step.Detail)
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{
		"initialization",
		"context_processing",
		"marketing_contribution",
		"risk_contribution",
		"final_decision",
	}, names)
}

func TestExplain_FallbacksOnModelFailure(t *testing.T) {
	d := sampleDecision()
	fake := testsupport.NewFakeAI()
	fake.Err = errors.ErrValidation // non-retryable, fails fast

	e := NewEngine(newMemoryDecisionRepo(d), nil, nil, fake, retry.DefaultConfig())

	exp, err := e.Explain(context.Background(), explanation.Key{DecisionID: d.ID})
	require.NoError(t, err)

	assert.Contains(t, exp.Narrative, `The action "qualify_lead" was selected`)
	assert.Contains(t, exp.Narrative, "high confidence (0.85)")
	require.NotEmpty(t, exp.Factors.Factors)
	for _, f := range exp.Factors.Factors {
		assert.True(t, f.IsFallback)
	}
}

func TestConfidenceLabels(t *testing.T) {
	cases := []struct {
		confidence float64
		label      string
	}{
		{0.95, "Very High"},
		{0.9, "Very High"},
		{0.8, "High"},
		{0.6, "Moderate"},
		{0.4, "Low"},
		{0.2, "Very Low"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.label, confidenceLabel(tc.confidence), "confidence %.2f", tc.confidence)
	}
}

func TestAnalyzeConfidence(t *testing.T) {
	d := sampleDecision()
	analysis := analyzeConfidence(d)

	assert.InDelta(t, 0.85, analysis.Overall, 1e-9)
	assert.InDelta(t, 0.6, analysis.Min, 1e-9)
	assert.InDelta(t, 0.85, analysis.Max, 1e-9)
	assert.InDelta(t, (0.85+0.85+0.6)/3, analysis.Avg, 1e-9)
	assert.InDelta(t, 0.15, analysis.UncertaintyLevel, 1e-9)
	assert.Equal(t, "High", analysis.Label)
	assert.Len(t, analysis.PerAgent, 2)
}

func TestRenderFormats(t *testing.T) {
	exp := &explanation.Explanation{
		Narrative: "Chosen for <reasons>.",
		Factors: explanation.FactorAnalysis{
			Factors: []explanation.Factor{
				{Name: "fit", Description: "strong fit", Importance: 0.9},
				{Name: "budget", Description: "confirmed budget", Importance: 0.7},
			},
			PrimaryFactor: explanation.Factor{Name: "fit", Importance: 0.9},
		},
		Confidence: explanation.ConfidenceAnalysis{Overall: 0.85, Label: "High"},
		Counterfactuals: []explanation.Counterfactual{
			{Action: "wait", ExpectedOutcome: "slower pipeline", Plausibility: 0.1},
		},
	}

	text := Render(exp, explanation.FormatText)
	assert.Contains(t, text, "Primary factor: fit")
	assert.Contains(t, text, "- wait (plausibility 0.10): slower pipeline")

	md := Render(exp, explanation.FormatMarkdown)
	assert.Contains(t, md, "## Decision Explanation")
	assert.Contains(t, md, "- **fit** (0.90): strong fit")

	htmlOut := Render(exp, explanation.FormatHTML)
	assert.Contains(t, htmlOut, "&lt;reasons&gt;")
	assert.NotContains(t, htmlOut, "<reasons>")

	jsonOut := Render(exp, explanation.FormatJSON)
	assert.Contains(t, jsonOut, `"explanation"`)
	assert.Contains(t, jsonOut, `"counterfactual_analysis"`)

	// Unknown formats degrade to text.
	assert.Equal(t, text, Render(exp, explanation.Format("pdf")))
}
