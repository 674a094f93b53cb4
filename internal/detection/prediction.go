package detection

import "strings"

// Prediction is one class score from a classifier frame.
type Prediction struct {
	Label       string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Top returns the highest-probability prediction in frame. When several
// entries share the maximum the first one in frame order wins. The second
// result is false for an empty or nil frame.
func Top(frame []Prediction) (Prediction, bool) {
	if len(frame) == 0 {
		return Prediction{}, false
	}
	best := frame[0]
	for _, p := range frame[1:] {
		if p.Probability > best.Probability {
			best = p
		}
	}
	best.Label = strings.TrimSpace(best.Label)
	return best, true
}

// sentinelSet lower-cases labels for case-insensitive membership checks.
func sentinelSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		if trimmed := strings.ToLower(strings.TrimSpace(label)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}
