package agents

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"arbiter/internal/adapters/ai"
	"arbiter/internal/domain/decision"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

// DefaultConfidenceSpreadThreshold is the tuned default for flagging a
// confidence disagreement on a shared action.
const DefaultConfidenceSpreadThreshold = 0.3

// Resolver detects disagreement between agent contributions and drives a
// one-round debate to reconcile them.
type Resolver struct {
	client    ai.Client
	threshold float64
	retryCfg  retry.Config
	log       *logger.Logger
}

// NewResolver creates a conflict resolver. A zero threshold selects the
// default confidence-spread threshold; a zero retryCfg falls back to the
// retry package defaults.
func NewResolver(client ai.Client, threshold float64, retryCfg retry.Config) *Resolver {
	if threshold <= 0 {
		threshold = DefaultConfidenceSpreadThreshold
	}
	return &Resolver{
		client:    client,
		threshold: threshold,
		retryCfg:  retryCfg,
		log:       logger.Get().With("component", "conflict_resolver"),
	}
}

// IdentifyConflicts inspects contributions in order and returns detected
// conflicts: one action disagreement per unordered pair of distinct actions,
// and one confidence disagreement per shared action whose confidence spread
// exceeds the threshold.
func (r *Resolver) IdentifyConflicts(contributions []*decision.Contribution) []decision.Conflict {
	byAction := make(map[string][]*decision.Contribution)
	for _, c := range contributions {
		byAction[c.Action] = append(byAction[c.Action], c)
	}

	actions := make([]string, 0, len(byAction))
	for action := range byAction {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	var conflicts []decision.Conflict

	// Action disagreements: one conflict per pair of distinct actions
	for i := 0; i < len(actions); i++ {
		for j := i + 1; j < len(actions); j++ {
			a, b := actions[i], actions[j]
			conflicts = append(conflicts, decision.Conflict{
				ID:      uuid.New().String(),
				Type:    decision.ConflictActionDisagreement,
				Actions: []string{a, b},
				Sides: map[string][]decision.AgentType{
					a: agentTypes(byAction[a]),
					b: agentTypes(byAction[b]),
				},
			})
		}
	}

	// Confidence disagreements on shared actions
	for _, action := range actions {
		group := byAction[action]
		if len(group) < 2 {
			continue
		}

		minConf, maxConf := group[0].Confidence, group[0].Confidence
		confidences := make(map[decision.AgentType]float64, len(group))
		for _, c := range group {
			confidences[c.AgentType] = c.Confidence
			if c.Confidence < minConf {
				minConf = c.Confidence
			}
			if c.Confidence > maxConf {
				maxConf = c.Confidence
			}
		}

		if spread := maxConf - minConf; spread > r.threshold {
			conflicts = append(conflicts, decision.Conflict{
				ID:          uuid.New().String(),
				Type:        decision.ConflictConfidenceDisagreement,
				Actions:     []string{action},
				Spread:      spread,
				Confidences: confidences,
			})
		}
	}

	return conflicts
}

// ResolveThroughDebate runs one moderated debate round per conflict. Each
// conflict is independent; an unusable moderator response yields the
// fallback resolution recommending manual review.
func (r *Resolver) ResolveThroughDebate(
	ctx context.Context,
	conflicts []decision.Conflict,
	in ContributionInput,
	contributions []*decision.Contribution,
) []decision.Resolution {
	resolutions := make([]decision.Resolution, 0, len(conflicts))

	for _, conflict := range conflicts {
		resolution := r.resolveOne(ctx, conflict, in, contributions)
		resolutions = append(resolutions, *resolution)
	}

	return resolutions
}

func (r *Resolver) resolveOne(
	ctx context.Context,
	conflict decision.Conflict,
	in ContributionInput,
	contributions []*decision.Contribution,
) *decision.Resolution {
	var resp *ai.GenerateResponse
	err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = r.client.Generate(ctx, ai.GenerateRequest{
			SystemPrompt: "You are a neutral decision moderator.",
			Prompt:       moderationPrompt(conflict, in, contributions),
		})
		return callErr
	})
	if err != nil {
		r.log.Warnf("Debate call failed for conflict %s: %v", conflict.ID, err)
		return FallbackResolution(conflict.ID)
	}

	resolution, err := ParseResolution(conflict.ID, resp.Text)
	if err != nil {
		r.log.Warnf("Unparsable moderator response for conflict %s: %v", conflict.ID, err)
		return FallbackResolution(conflict.ID)
	}

	return resolution
}

func agentTypes(contributions []*decision.Contribution) []decision.AgentType {
	types := make([]decision.AgentType, 0, len(contributions))
	for _, c := range contributions {
		types = append(types, c.AgentType)
	}
	return types
}
