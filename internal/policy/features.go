package policy

import (
	"strconv"
	"strings"
	"time"
)

// FeatureVectorSize is the fixed length of every extracted state vector.
// Slots: 8 scaled numerics, 4 segment one-hots, 5 channel one-hots,
// 5 stage one-hots, time-of-day, day-of-week.
const FeatureVectorSize = 24

var numericFields = []struct {
	key   string
	scale float64
}{
	{"value", 10000},
	{"score", 100},
	{"budget", 10000},
	{"engagement", 100},
	{"urgency", 10},
	{"interactions", 50},
	{"age_days", 365},
	{"probability", 1},
}

var (
	segmentValues = []string{"enterprise", "mid_market", "smb", "consumer"}
	channelValues = []string{"email", "phone", "social", "web", "referral"}
	stageValues   = []string{"new", "engaged", "qualified", "negotiation", "closed"}
)

// ExtractFeatures maps a heterogeneous state object to a fixed-length
// numeric vector. The mapping is deterministic and total: missing fields
// read as zero and any extraction panic yields the neutral vector.
func ExtractFeatures(state map[string]interface{}) (features []float64) {
	features = make([]float64, FeatureVectorSize)

	defer func() {
		if r := recover(); r != nil {
			features = make([]float64, FeatureVectorSize)
		}
	}()

	i := 0
	for _, f := range numericFields {
		features[i] = clamp01(numericValue(state[f.key]) / f.scale)
		i++
	}

	i = oneHot(features, i, stringValue(state["segment"]), segmentValues)
	i = oneHot(features, i, stringValue(state["channel"]), channelValues)
	i = oneHot(features, i, stringValue(state["stage"]), stageValues)

	now := featureTime(state)
	features[i] = float64(now.Hour()) / 23.0
	features[i+1] = float64(now.Weekday()) / 6.0

	return features
}

// NeutralFeatures returns the all-zero vector used when no state is known.
func NeutralFeatures() []float64 {
	return make([]float64, FeatureVectorSize)
}

// featureTime reads an explicit timestamp from the state so extraction
// stays reproducible for stored states, falling back to wall clock.
func featureTime(state map[string]interface{}) time.Time {
	if raw, ok := state["timestamp"]; ok {
		if s, ok := raw.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

func oneHot(features []float64, offset int, value string, known []string) int {
	for j, k := range known {
		if value == k {
			features[offset+j] = 1
		}
	}
	return offset + len(known)
}

func numericValue(raw interface{}) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func stringValue(raw interface{}) string {
	s, _ := raw.(string)
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
