package agents

import (
	"strings"

	"arbiter/internal/domain/decision"
)

// Decision types with dedicated agent sets. Unknown types fall back to the
// generic strategy/ethics/risk triad.
const (
	DecisionLeadQualification   = "lead_qualification"
	DecisionPricingStrategy     = "pricing_strategy"
	DecisionContentApproval     = "content_approval"
	DecisionCampaignPlanning    = "campaign_planning"
	DecisionResourceAllocation  = "resource_allocation"
	DecisionCustomerEscalation  = "customer_escalation"
)

// Profile carries the role description and prompt focus for one agent type.
type Profile struct {
	Role  string
	Focus []string
}

var profiles = map[decision.AgentType]Profile{
	decision.AgentStrategy: {
		Role:  "a strategic planning specialist who weighs long-term positioning, competitive dynamics and opportunity cost",
		Focus: []string{"long-term impact", "alignment with goals", "competitive positioning"},
	},
	decision.AgentEthics: {
		Role:  "an ethics and compliance reviewer who checks decisions for fairness, transparency and regulatory exposure",
		Focus: []string{"fairness", "compliance", "reputational risk"},
	},
	decision.AgentRisk: {
		Role:  "a risk analyst who quantifies downside scenarios, failure modes and exposure limits",
		Focus: []string{"downside scenarios", "probability of failure", "exposure limits"},
	},
	decision.AgentFinance: {
		Role:  "a financial analyst who evaluates cost, revenue impact, margins and return on investment",
		Focus: []string{"cost", "expected revenue", "ROI"},
	},
	decision.AgentMarketing: {
		Role:  "a marketing specialist who assesses audience fit, messaging, channel effectiveness and brand impact",
		Focus: []string{"audience fit", "conversion potential", "brand consistency"},
	},
	decision.AgentOperations: {
		Role:  "an operations specialist who evaluates execution feasibility, capacity and process impact",
		Focus: []string{"feasibility", "capacity", "process impact"},
	},
}

// genericTriad is the default agent set for unknown decision types.
var genericTriad = []decision.AgentType{
	decision.AgentStrategy,
	decision.AgentEthics,
	decision.AgentRisk,
}

var defaultAgentSets = map[string][]decision.AgentType{
	DecisionLeadQualification:  {decision.AgentMarketing, decision.AgentFinance, decision.AgentRisk},
	DecisionPricingStrategy:    {decision.AgentFinance, decision.AgentStrategy, decision.AgentRisk},
	DecisionContentApproval:    {decision.AgentMarketing, decision.AgentEthics, decision.AgentRisk},
	DecisionCampaignPlanning:   {decision.AgentStrategy, decision.AgentMarketing, decision.AgentFinance},
	DecisionResourceAllocation: {decision.AgentOperations, decision.AgentFinance, decision.AgentStrategy},
	DecisionCustomerEscalation: {decision.AgentOperations, decision.AgentEthics, decision.AgentRisk},
}

var preferredLeads = map[string]decision.AgentType{
	DecisionLeadQualification:  decision.AgentMarketing,
	DecisionPricingStrategy:    decision.AgentFinance,
	DecisionContentApproval:    decision.AgentMarketing,
	DecisionCampaignPlanning:   decision.AgentStrategy,
	DecisionResourceAllocation: decision.AgentOperations,
	DecisionCustomerEscalation: decision.AgentOperations,
}

// ProfileFor returns the role profile for an agent type. Unknown types get a
// generalist profile rather than an error.
func ProfileFor(t decision.AgentType) Profile {
	if p, ok := profiles[t]; ok {
		return p
	}
	return Profile{
		Role:  "a generalist business analyst",
		Focus: []string{"overall benefit", "practicality"},
	}
}

// normalizeDecisionType folds caller spellings like "LEAD_QUALIFICATION"
// onto the table keys.
func normalizeDecisionType(decisionType string) string {
	return strings.ToLower(strings.TrimSpace(decisionType))
}

// DefaultAgentSet returns the configured agent set for a decision type.
func DefaultAgentSet(decisionType string) []decision.AgentType {
	if set, ok := defaultAgentSets[normalizeDecisionType(decisionType)]; ok {
		out := make([]decision.AgentType, len(set))
		copy(out, set)
		return out
	}
	out := make([]decision.AgentType, len(genericTriad))
	copy(out, genericTriad)
	return out
}

// PreferredLead returns the lead agent for hierarchical mode: the
// per-decision-type preference, falling back to strategy, then to the first
// agent in the set.
func PreferredLead(decisionType string, agentSet []decision.AgentType) decision.AgentType {
	if lead, ok := preferredLeads[normalizeDecisionType(decisionType)]; ok {
		for _, t := range agentSet {
			if t == lead {
				return lead
			}
		}
	}
	for _, t := range agentSet {
		if t == decision.AgentStrategy {
			return decision.AgentStrategy
		}
	}
	if len(agentSet) > 0 {
		return agentSet[0]
	}
	return decision.AgentStrategy
}
