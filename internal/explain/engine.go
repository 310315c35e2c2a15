package explain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"arbiter/internal/adapters/ai"
	"arbiter/internal/domain/decision"
	"arbiter/internal/domain/explanation"
	"arbiter/internal/metrics"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

// Engine generates audience-conditioned explanations over persisted
// decisions. It is read-only with respect to decisions; generated
// explanations are cached by their full parameter tuple.
type Engine struct {
	decisions decision.Repository
	cache     explanation.Cache
	repo      explanation.Repository
	extractor *factorExtractor
	narrator  *narrator
	log       *logger.Logger
}

// NewEngine creates an explainability engine. Cache and repository are
// optional; a zero retryCfg falls back to the retry package defaults.
func NewEngine(decisions decision.Repository, cache explanation.Cache, repo explanation.Repository, client ai.Client, retryCfg retry.Config) *Engine {
	return &Engine{
		decisions: decisions,
		cache:     cache,
		repo:      repo,
		extractor: newFactorExtractor(client, retryCfg),
		narrator:  newNarrator(client, retryCfg),
		log:       logger.Get().With("component", "explain_engine"),
	}
}

// Explain produces the explanation for a past decision under the given key.
// Returns errors.ErrNotFound when the decision does not exist.
func (e *Engine) Explain(ctx context.Context, key explanation.Key) (*explanation.Explanation, error) {
	if key.Detail < explanation.DetailMinimal || key.Detail > explanation.DetailComprehensive {
		key.Detail = explanation.DetailStandard
	}
	if key.Format == "" {
		key.Format = explanation.FormatText
	}
	if key.Audience == "" {
		key.Audience = explanation.AudienceBusiness
	}

	if e.cache != nil {
		cached, err := e.cache.Get(ctx, key)
		if err != nil {
			e.log.Warnf("Explanation cache read failed: %v", err)
		} else if cached != nil {
			metrics.ExplanationsTotal.WithLabelValues(string(key.Audience), string(key.Format), "hit").Inc()
			return cached, nil
		}
	}

	d, err := e.decisions.GetByID(ctx, key.DecisionID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Wrapf(errors.ErrNotFound, "decision %s", key.DecisionID)
		}
		return nil, errors.Wrap(err, "load decision for explanation")
	}

	factors := e.extractor.Analyze(ctx, d, key.Detail)
	confidence := analyzeConfidence(d)
	narrative := e.narrator.Narrate(ctx, d, factors, key.Audience, key.Detail)
	trace := buildTrace(d, key.Detail)

	exp := &explanation.Explanation{
		ID:          uuid.New(),
		Key:         key,
		Factors:     factors,
		Confidence:  confidence,
		Narrative:   narrative,
		Trace:       trace,
		GeneratedAt: time.Now(),
	}

	if key.Counterfactuals {
		exp.Counterfactuals = buildCounterfactuals(d)
	}

	exp.Rendered = Render(exp, key.Format)

	if e.cache != nil {
		if err := e.cache.Set(ctx, exp); err != nil {
			e.log.Warnf("Explanation cache write failed: %v", err)
		}
	}
	if e.repo != nil {
		if err := e.repo.Create(ctx, exp); err != nil {
			e.log.Warnf("Explanation persist failed: %v", err)
		}
	}

	metrics.ExplanationsTotal.WithLabelValues(string(key.Audience), string(key.Format), "miss").Inc()
	return exp, nil
}
