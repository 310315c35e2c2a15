package agents

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbiter/internal/adapters/config"
	"arbiter/internal/domain/decision"
	"arbiter/internal/metrics"
	"arbiter/pkg/errors"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

// PolicyAdvisor provides a first-pass recommendation from the learned
// policy, injected into the agents' context as a hint.
type PolicyAdvisor interface {
	Advise(ctx context.Context, state map[string]interface{}, candidates []string) (action string, confidence float64, err error)
}

// DecisionRecorder receives finished decisions for analytics.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, d *decision.Decision)
}

// Deps carries the orchestrator's collaborators. Repository, Recorder and
// Advisor are optional.
type Deps struct {
	Registry   *Registry
	Resolver   *Resolver
	Repository decision.Repository
	Recorder   DecisionRecorder
	Advisor    PolicyAdvisor
}

// Orchestrator coordinates specialized agents to produce one decision under
// a chosen collaboration protocol.
type Orchestrator struct {
	registry      *Registry
	resolver      *Resolver
	repo          decision.Repository
	recorder      DecisionRecorder
	advisor       PolicyAdvisor
	retryCfg      retry.Config
	debateTimeout time.Duration
	log           *logger.Logger
}

// NewOrchestrator creates a new agent orchestrator
func NewOrchestrator(deps Deps, cfg config.DecisionConfig) *Orchestrator {
	return &Orchestrator{
		registry:      deps.Registry,
		resolver:      deps.Resolver,
		repo:          deps.Repository,
		recorder:      deps.Recorder,
		advisor:       deps.Advisor,
		retryCfg:      retry.DefaultConfig(),
		debateTimeout: cfg.DebateTimeout,
		log:           logger.Get().With("component", "orchestrator"),
	}
}

// Decide runs one collaboration and returns the persisted decision.
func (o *Orchestrator) Decide(ctx context.Context, req decision.Request) (*decision.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	agentSet := req.AgentSet
	if len(agentSet) == 0 {
		agentSet = DefaultAgentSet(req.DecisionType)
	}

	mode := req.Mode
	if mode == "" {
		mode = decision.ModeConsensus
	}

	start := time.Now()
	o.log.Infof("Decision started: type=%s mode=%s agents=%d", req.DecisionType, mode, len(agentSet))

	in := ContributionInput{
		DecisionType: normalizeDecisionType(req.DecisionType),
		Context:      req.Context,
		Constraints:  req.Constraints,
	}
	o.applyPolicyHint(ctx, &in)

	var (
		result        RunningResult
		contributions []*decision.Contribution
		conflicts     []decision.Conflict
		resolutions   []decision.Resolution
	)

	switch mode {
	case decision.ModeSequential:
		result, contributions = o.runSequential(ctx, agentSet, in)
	case decision.ModeParallel:
		contributions = o.runParallel(ctx, agentSet, in)
		result = integrateAll(contributions)
	case decision.ModeHierarchical:
		result, contributions = o.runHierarchical(ctx, agentSet, in)
	default: // consensus
		result, contributions, conflicts, resolutions = o.runConsensus(ctx, agentSet, in)
	}

	d := &decision.Decision{
		ID:                 uuid.New(),
		DecisionType:       in.DecisionType,
		Mode:               mode,
		Action:             result.Action,
		Confidence:         result.Confidence,
		Reasoning:          result.Reasoning,
		AlternativeActions: withoutAction(result.AlternativeActions, result.Action),
		Contributions:      byAgent(contributions),
		Conflicts:          conflicts,
		Resolutions:        resolutions,
		Context:            req.Context,
		Constraints:        req.Constraints,
		StartTime:          start,
		EndTime:            time.Now(),
	}

	if err := o.persist(ctx, d); err != nil {
		return nil, err
	}

	if o.recorder != nil {
		o.recorder.RecordDecision(ctx, d)
	}

	metrics.DecisionsTotal.WithLabelValues(d.DecisionType, string(mode)).Inc()
	metrics.DecisionDuration.WithLabelValues(string(mode)).Observe(d.EndTime.Sub(start).Seconds())
	metrics.ConflictsTotal.WithLabelValues(d.DecisionType).Add(float64(len(conflicts)))

	o.log.Infof("Decision complete: action=%s confidence=%.2f conflicts=%d (duration: %v)",
		d.Action, d.Confidence, len(conflicts), d.EndTime.Sub(start))

	return d, nil
}

// applyPolicyHint asks the learned policy for a first-pass recommendation
// when candidate actions are supplied, and exposes it to the agents.
func (o *Orchestrator) applyPolicyHint(ctx context.Context, in *ContributionInput) {
	if o.advisor == nil {
		return
	}

	candidates := candidateActions(in.Constraints)
	if len(candidates) == 0 {
		return
	}

	action, confidence, err := o.advisor.Advise(ctx, in.Context, candidates)
	if err != nil {
		o.log.Warnf("Policy advisor unavailable: %v", err)
		return
	}

	enriched := make(map[string]interface{}, len(in.Context)+1)
	for k, v := range in.Context {
		enriched[k] = v
	}
	enriched["policy_hint"] = map[string]interface{}{
		"action":     action,
		"confidence": confidence,
	}
	in.Context = enriched
}

// runSequential executes agents strictly one after another; each sees the
// accumulated result-so-far and may revise it.
func (o *Orchestrator) runSequential(
	ctx context.Context,
	agentSet []decision.AgentType,
	in ContributionInput,
) (RunningResult, []*decision.Contribution) {
	var result RunningResult
	contributions := make([]*decision.Contribution, 0, len(agentSet))

	for i, agentType := range agentSet {
		o.log.Debugf("Running agent %d/%d: %s", i+1, len(agentSet), agentType)

		stepInput := in
		stepInput.RunningResult = &result

		c := o.registry.Get(agentType).Contribute(ctx, stepInput)
		contributions = append(contributions, c)
		Integrate(&result, c)
	}

	return result, contributions
}

// runParallel executes all agents concurrently with identical context.
// Results are collected into agent-list order so integration stays
// deterministic regardless of completion order.
func (o *Orchestrator) runParallel(
	ctx context.Context,
	agentSet []decision.AgentType,
	in ContributionInput,
) []*decision.Contribution {
	contributions := make([]*decision.Contribution, len(agentSet))

	var wg sync.WaitGroup
	for i, agentType := range agentSet {
		wg.Add(1)
		go func(i int, agentType decision.AgentType) {
			defer wg.Done()
			contributions[i] = o.registry.Get(agentType).Contribute(ctx, in)
		}(i, agentType)
	}
	wg.Wait()

	return contributions
}

// runHierarchical runs all non-lead agents concurrently, then the lead agent
// once more with their contributions as additional input. The lead's output
// is the final result.
func (o *Orchestrator) runHierarchical(
	ctx context.Context,
	agentSet []decision.AgentType,
	in ContributionInput,
) (RunningResult, []*decision.Contribution) {
	lead := PreferredLead(in.DecisionType, agentSet)

	supporting := make([]decision.AgentType, 0, len(agentSet))
	for _, t := range agentSet {
		if t != lead {
			supporting = append(supporting, t)
		}
	}

	peerContributions := o.runParallel(ctx, supporting, in)

	leadInput := in
	leadInput.PeerContributions = peerContributions
	leadContribution := o.registry.Get(lead).Contribute(ctx, leadInput)

	var result RunningResult
	Integrate(&result, leadContribution)

	return result, append(peerContributions, leadContribution)
}

// runConsensus runs all agents concurrently, resolves any conflicts through
// one debate round, and re-runs all agents with the resolutions visible.
func (o *Orchestrator) runConsensus(
	ctx context.Context,
	agentSet []decision.AgentType,
	in ContributionInput,
) (RunningResult, []*decision.Contribution, []decision.Conflict, []decision.Resolution) {
	contributions := o.runParallel(ctx, agentSet, in)

	conflicts := o.resolver.IdentifyConflicts(contributions)
	if len(conflicts) == 0 {
		return integrateAll(contributions), contributions, nil, nil
	}

	o.log.Infof("Consensus round raised %d conflicts; starting debate", len(conflicts))

	debateCtx := ctx
	if o.debateTimeout > 0 {
		var cancel context.CancelFunc
		debateCtx, cancel = context.WithTimeout(ctx, o.debateTimeout)
		defer cancel()
	}
	resolutions := o.resolver.ResolveThroughDebate(debateCtx, conflicts, in, contributions)

	rerunInput := in
	rerunInput.Conflicts = conflicts
	rerunInput.Resolutions = resolutions

	second := o.runParallel(ctx, agentSet, rerunInput)

	return integrateAll(second), second, conflicts, resolutions
}

func (o *Orchestrator) persist(ctx context.Context, d *decision.Decision) error {
	if o.repo == nil {
		return nil
	}
	err := retry.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		return o.repo.Create(ctx, d)
	})
	if err != nil {
		return errors.Wrapf(err, "persist decision %s", d.ID)
	}
	return nil
}

func integrateAll(contributions []*decision.Contribution) RunningResult {
	var result RunningResult
	for _, c := range contributions {
		Integrate(&result, c)
	}
	return result
}

func byAgent(contributions []*decision.Contribution) map[decision.AgentType]*decision.Contribution {
	out := make(map[decision.AgentType]*decision.Contribution, len(contributions))
	for _, c := range contributions {
		out[c.AgentType] = c
	}
	return out
}

func withoutAction(actions []string, action string) []string {
	if len(actions) == 0 {
		return nil
	}
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		if a != action {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// candidateActions reads the optional candidate-action list from request
// constraints, tolerating both typed and decoded-JSON slices.
func candidateActions(constraints map[string]interface{}) []string {
	raw, ok := constraints["candidate_actions"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
