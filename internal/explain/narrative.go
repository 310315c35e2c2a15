package explain

import (
	"context"
	"fmt"
	"strings"

	"arbiter/internal/adapters/ai"
	"arbiter/internal/domain/decision"
	"arbiter/internal/domain/explanation"
	"arbiter/pkg/logger"
	"arbiter/pkg/retry"
)

var audienceInstructions = map[explanation.Audience]string{
	explanation.AudienceBusiness:  "Write for a business stakeholder. Focus on impact and rationale; avoid implementation jargon.",
	explanation.AudienceTechnical: "Write for an engineer. Name the contributing signals, confidence values, and the resolution mechanics precisely.",
	explanation.AudienceExecutive: "Write for an executive. Lead with the outcome, keep it short, quantify where possible.",
	explanation.AudienceCustomer:  "Write for the affected customer. Plain language, empathetic tone, no internal terminology.",
}

var detailInstructions = map[explanation.DetailLevel]string{
	explanation.DetailMinimal:       "One or two sentences.",
	explanation.DetailStandard:      "One short paragraph.",
	explanation.DetailDetailed:      "Two paragraphs covering the main factors and any disagreement between agents.",
	explanation.DetailComprehensive: "A full account: factors, per-agent positions, conflicts and how they were resolved, and residual uncertainty.",
}

// narrator turns a decision plus its factor analysis into audience-facing
// prose. Failures fall back to a templated sentence.
type narrator struct {
	client   ai.Client
	retryCfg retry.Config
	log      *logger.Logger
}

func newNarrator(client ai.Client, retryCfg retry.Config) *narrator {
	return &narrator{
		client:   client,
		retryCfg: retryCfg,
		log:      logger.Get().With("component", "narrator"),
	}
}

func (n *narrator) Narrate(
	ctx context.Context,
	d *decision.Decision,
	factors explanation.FactorAnalysis,
	audience explanation.Audience,
	detail explanation.DetailLevel,
) string {
	var resp *ai.GenerateResponse
	err := retry.Do(ctx, n.retryCfg, func(ctx context.Context) error {
		var callErr error
		resp, callErr = n.client.Generate(ctx, ai.GenerateRequest{
			SystemPrompt: "You explain automated decisions to people. Respond with prose only, no JSON.",
			Prompt:       narrativePrompt(d, factors, audience, detail),
		})
		return callErr
	})
	if err != nil {
		n.log.Warnf("Narrative generation failed: %v", err)
		return fallbackNarrative(d)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return fallbackNarrative(d)
	}
	return text
}

func narrativePrompt(
	d *decision.Decision,
	factors explanation.FactorAnalysis,
	audience explanation.Audience,
	detail explanation.DetailLevel,
) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Explain the following decision.\n\n")
	fmt.Fprintf(&b, "Decision type: %s\nChosen action: %s\nConfidence: %.2f\n", d.DecisionType, d.Action, d.Confidence)
	if len(d.AlternativeActions) > 0 {
		fmt.Fprintf(&b, "Alternatives considered: %s\n", strings.Join(d.AlternativeActions, ", "))
	}

	if len(factors.Factors) > 0 {
		b.WriteString("\nContributing factors, most important first:\n")
		for _, f := range factors.Factors {
			fmt.Fprintf(&b, "- %s (importance %.2f): %s\n", f.Name, f.Importance, f.Description)
		}
	}

	if len(d.Conflicts) > 0 {
		fmt.Fprintf(&b, "\nThe agents raised %d conflicts that were resolved through debate.\n", len(d.Conflicts))
		for _, r := range d.Resolutions {
			fmt.Fprintf(&b, "- Resolution: %s (recommended %s)\n", r.Resolution, r.RecommendedAction)
		}
	}

	instruction, ok := audienceInstructions[audience]
	if !ok {
		instruction = audienceInstructions[explanation.AudienceBusiness]
	}
	fmt.Fprintf(&b, "\n%s %s", instruction, detailInstructions[detail])

	return b.String()
}

func fallbackNarrative(d *decision.Decision) string {
	return fmt.Sprintf(
		"The action %q was selected for this %s decision with %s confidence (%.2f).",
		d.Action, d.DecisionType, strings.ToLower(confidenceLabel(d.Confidence)), d.Confidence,
	)
}
