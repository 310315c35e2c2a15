package agents

import (
	"context"
	"time"

	"arbiter/internal/adapters/ai"
	"arbiter/internal/domain/decision"
	"arbiter/internal/metrics"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

// Agent is one specialized reasoning role. Contribute is total: failures of
// the LLM collaborator or of response parsing degrade to the fallback
// contribution instead of aborting the collaboration run.
type Agent interface {
	Type() decision.AgentType
	Contribute(ctx context.Context, in ContributionInput) *decision.Contribution
}

// llmAgent is a prompt-driven agent backed by the LLM collaborator.
type llmAgent struct {
	agentType decision.AgentType
	client    ai.Client
	retryCfg  retry.Config
	timeout   time.Duration
	log       *logger.Logger
}

// NewLLMAgent creates a prompt-driven agent for the given type. A zero
// retryCfg falls back to the retry package defaults.
func NewLLMAgent(agentType decision.AgentType, client ai.Client, timeout time.Duration, retryCfg retry.Config) Agent {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &llmAgent{
		agentType: agentType,
		client:    client,
		retryCfg:  retryCfg,
		timeout:   timeout,
		log:       logger.Get().With("agent", string(agentType)),
	}
}

func (a *llmAgent) Type() decision.AgentType { return a.agentType }

func (a *llmAgent) Contribute(ctx context.Context, in ContributionInput) *decision.Contribution {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()

	var resp *ai.GenerateResponse
	err := retry.Do(ctx, a.retryCfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = a.client.Generate(ctx, ai.GenerateRequest{
			SystemPrompt: systemPrompt(a.agentType),
			Prompt:       contributionPrompt(in),
		})
		return callErr
	})
	if err != nil {
		a.log.Warnf("Agent call failed after retries: %v (duration: %v)", err, time.Since(start))
		metrics.RecordAgentCall(string(a.agentType), "", time.Since(start), 0, 0, err)
		metrics.FallbackContributions.WithLabelValues(string(a.agentType)).Inc()
		return FallbackContribution(a.agentType, "inference call failed")
	}

	metrics.RecordAgentCall(string(a.agentType), resp.Model, time.Since(start), resp.PromptTokens, resp.CompletionTokens, nil)

	contribution, err := ParseContribution(a.agentType, resp.Text)
	if err != nil {
		a.log.Warnf("Unparsable agent response: %v", err)
		metrics.FallbackContributions.WithLabelValues(string(a.agentType)).Inc()
		return FallbackContribution(a.agentType, "unparsable response")
	}

	a.log.Debugf("Contribution ready: %s (confidence %.2f, duration %v)",
		contribution.Action, contribution.Confidence, time.Since(start))

	return contribution
}
