package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"arbiter/internal/adapters/ai"
)

// FakeAI is a scripted ai.Client for tests. Responses are matched against
// the prompt by substring rule, in registration order; unmatched prompts
// get the default response. All calls are recorded.
type FakeAI struct {
	mu       sync.Mutex
	rules    []rule
	Default  string
	Err      error
	Requests []ai.GenerateRequest

	// Observe, when set, sees every call before rule matching.
	Observe func(ctx context.Context, req ai.GenerateRequest)
}

type rule struct {
	substring string
	response  string
	err       error
}

// NewFakeAI creates a fake client with a default JSON contribution response
func NewFakeAI() *FakeAI {
	return &FakeAI{
		Default: ContributionJSON("proceed", 0.8, "default scripted reasoning"),
	}
}

// Respond registers a scripted response for prompts containing substring.
func (f *FakeAI) Respond(substring, response string) *FakeAI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{substring: substring, response: response})
	return f
}

// FailOn registers an error for prompts containing substring.
func (f *FakeAI) FailOn(substring string, err error) *FakeAI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{substring: substring, err: err})
	return f
}

func (f *FakeAI) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.Observe != nil {
		f.Observe(ctx, req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)

	haystack := req.SystemPrompt + "\n" + req.Prompt
	for _, r := range f.rules {
		if strings.Contains(haystack, r.substring) {
			if r.err != nil {
				return nil, r.err
			}
			return &ai.GenerateResponse{Text: r.response, Model: "fake"}, nil
		}
	}

	if f.Err != nil {
		return nil, f.Err
	}
	return &ai.GenerateResponse{Text: f.Default, Model: "fake"}, nil
}

// CallCount returns the number of Generate calls seen so far.
func (f *FakeAI) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// ContributionJSON builds a well-formed agent contribution response.
func ContributionJSON(action string, confidence float64, reasoning string, alternatives ...string) string {
	alts := make([]string, 0, len(alternatives))
	for _, a := range alternatives {
		alts = append(alts, fmt.Sprintf("%q", a))
	}
	return fmt.Sprintf(
		`Here is my analysis. {"action": %q, "confidence": %.2f, "reasoning": %q, "alternative_actions": [%s]}`,
		action, confidence, reasoning, strings.Join(alts, ", "),
	)
}

// ResolutionJSON builds a well-formed moderator resolution response.
func ResolutionJSON(resolution, recommendedAction string, confidence float64) string {
	return fmt.Sprintf(
		`{"resolution": %q, "recommended_action": %q, "confidence": %.2f}`,
		resolution, recommendedAction, confidence,
	)
}
