package policy

import (
	"encoding/json"
	"math"

	"arbiter/internal/domain/experience"
	"arbiter/pkg/errors"
)

// Model is a linear softmax policy over a lazily-grown action vocabulary,
// paired with a linear value estimator. The engine is the single writer;
// a snapshot taken before an update keeps concurrent reads consistent.
type Model struct {
	ActionIndexes map[string]int `json:"action_indexes"`
	ActionNames   []string       `json:"action_names"`
	Weights       [][]float64    `json:"weights"` // per action, one vector per feature slot
	ValueWeights  []float64      `json:"value_weights"`
	Version       int64          `json:"version"`
}

// NewModel creates an empty policy model
func NewModel() *Model {
	return &Model{
		ActionIndexes: make(map[string]int),
		ValueWeights:  make([]float64, FeatureVectorSize),
	}
}

// ActionIndex returns the stable index for an action, registering it on
// first sight.
func (m *Model) ActionIndex(action string) int {
	if idx, ok := m.ActionIndexes[action]; ok {
		return idx
	}
	idx := len(m.ActionNames)
	m.ActionIndexes[action] = idx
	m.ActionNames = append(m.ActionNames, action)
	m.Weights = append(m.Weights, make([]float64, FeatureVectorSize))
	return idx
}

// Distribution evaluates the policy over the candidate set and returns
// a probability per candidate, renormalized over the set. Unknown actions
// are registered with zero weights, so they receive the uniform share.
func (m *Model) Distribution(features []float64, candidates []string) map[string]float64 {
	logits := make([]float64, len(candidates))
	maxLogit := math.Inf(-1)
	for i, action := range candidates {
		idx := m.ActionIndex(action)
		logits[i] = dot(m.Weights[idx], features)
		if logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}

	total := 0.0
	probs := make(map[string]float64, len(candidates))
	for i, action := range candidates {
		p := math.Exp(logits[i] - maxLogit)
		probs[action] = p
		total += p
	}
	for action := range probs {
		probs[action] /= total
	}
	return probs
}

// EstimateValue returns the state-value estimate for a feature vector.
func (m *Model) EstimateValue(features []float64) float64 {
	return dot(m.ValueWeights, features)
}

// UpdateConfig carries the hyperparameters of one training step.
type UpdateConfig struct {
	LearningRate       float64
	ClipEpsilon        float64
	EntropyCoefficient float64
}

// Update applies one training step over a sampled batch. The value
// estimator is fit toward observed rewards; the policy follows a
// clipped-ratio objective on the advantage, plus an entropy bonus.
// Returns the mean squared value loss over the batch.
func (m *Model) Update(batch []*experience.Experience, cfg UpdateConfig) float64 {
	if len(batch) == 0 {
		return 0
	}

	// Pre-update probabilities serve as the old policy for the ratio.
	oldProbs := make([]float64, len(batch))
	for i, exp := range batch {
		oldProbs[i] = m.actionProbability(exp.StateFeatures, exp.Action)
	}

	var loss float64
	for i, exp := range batch {
		reward := *exp.Reward
		features := exp.StateFeatures

		value := m.EstimateValue(features)
		tdError := reward - value
		loss += tdError * tdError

		for j, f := range features {
			m.ValueWeights[j] += cfg.LearningRate * tdError * f
		}

		advantage := tdError
		ratio := m.actionProbability(features, exp.Action) / math.Max(oldProbs[i], 1e-9)
		scale := clip(ratio, 1-cfg.ClipEpsilon, 1+cfg.ClipEpsilon) * advantage

		m.applyPolicyGradient(features, exp.Action, scale, cfg)
	}

	m.Version++
	return loss / float64(len(batch))
}

// applyPolicyGradient takes one ascent step on the log-probability of the
// taken action scaled by the clipped advantage, with an entropy bonus
// pushing the distribution away from collapse.
func (m *Model) applyPolicyGradient(features []float64, action string, scale float64, cfg UpdateConfig) {
	probs := m.fullDistribution(features)
	entropy := 0.0
	for _, p := range probs {
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}

	takenIdx := m.ActionIndex(action)
	for idx := range m.Weights {
		p := probs[idx]

		// d(log pi(taken))/d(w_idx)
		grad := -p
		if idx == takenIdx {
			grad = 1 - p
		}

		// d(entropy)/d(w_idx)
		entropyGrad := 0.0
		if p > 0 {
			entropyGrad = -p * (math.Log(p) + entropy)
		}

		step := cfg.LearningRate * (scale*grad + cfg.EntropyCoefficient*entropyGrad)
		for j, f := range features {
			m.Weights[idx][j] += step * f
		}
	}
}

func (m *Model) actionProbability(features []float64, action string) float64 {
	probs := m.fullDistribution(features)
	return probs[m.ActionIndex(action)]
}

// fullDistribution is the softmax over the entire known action vocabulary.
func (m *Model) fullDistribution(features []float64) []float64 {
	if len(m.Weights) == 0 {
		return nil
	}

	logits := make([]float64, len(m.Weights))
	maxLogit := math.Inf(-1)
	for i, w := range m.Weights {
		logits[i] = dot(w, features)
		if logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}

	total := 0.0
	probs := make([]float64, len(logits))
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}

// Marshal serializes the model weights for snapshotting.
func (m *Model) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal policy model")
	}
	return data, nil
}

// UnmarshalModel restores a model from a snapshot payload.
func UnmarshalModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(errors.ErrParsing, "unmarshal policy model: %v", err)
	}
	if m.ActionIndexes == nil {
		m.ActionIndexes = make(map[string]int)
	}
	if len(m.ValueWeights) == 0 {
		m.ValueWeights = make([]float64, FeatureVectorSize)
	}
	return &m, nil
}

func dot(w, x []float64) float64 {
	n := len(w)
	if len(x) < n {
		n = len(x)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += w[i] * x[i]
	}
	return sum
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
