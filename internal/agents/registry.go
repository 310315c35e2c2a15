package agents

import (
	"sync"
	"time"

	"arbiter/internal/adapters/ai"
	"arbiter/internal/domain/decision"
	"arbiter/pkg/retry"
)

// Registry stores agents by their type for quick lookup.
type Registry struct {
	agents map[decision.AgentType]Agent
	mu     sync.RWMutex

	client   ai.Client
	timeout  time.Duration
	retryCfg retry.Config
}

// NewRegistry constructs a registry that lazily creates prompt-driven agents
// backed by the given LLM client.
func NewRegistry(client ai.Client, timeout time.Duration, retryCfg retry.Config) *Registry {
	return &Registry{
		agents:   make(map[decision.AgentType]Agent),
		client:   client,
		timeout:  timeout,
		retryCfg: retryCfg,
	}
}

// Register adds or replaces an agent entry.
func (r *Registry) Register(agentType decision.AgentType, ag Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentType] = ag
}

// Get retrieves the agent for a type, creating the default LLM-backed agent
// on first use.
func (r *Registry) Get(agentType decision.AgentType) Agent {
	r.mu.RLock()
	ag, ok := r.agents[agentType]
	r.mu.RUnlock()
	if ok {
		return ag
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ag, ok := r.agents[agentType]; ok {
		return ag
	}
	ag = NewLLMAgent(agentType, r.client, r.timeout, r.retryCfg)
	r.agents[agentType] = ag
	return ag
}

// List returns registered agent types.
func (r *Registry) List() []decision.AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]decision.AgentType, 0, len(r.agents))
	for t := range r.agents {
		res = append(res, t)
	}

	return res
}
