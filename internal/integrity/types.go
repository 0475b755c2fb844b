package integrity

import "github.com/danielpatrickdp/vowguard/internal/vow"

// #region scorer-config
// ScorerConfig holds the deviation thresholds of the integrity check.
type ScorerConfig struct {
	DirectionDeviation float64 `mapstructure:"direction_deviation"` // signature direction drift that breaks "does not evade emotion"
	TensionDeviation   float64 `mapstructure:"tension_deviation"`   // signature tension drift that breaks "does not conceal sincerity"
	HonestBelow        float64 `mapstructure:"honest_below"`        // contradiction must stay under this to be honest
}

// DefaultScorerConfig returns the baseline thresholds.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		DirectionDeviation: 0.3,
		TensionDeviation:   0.4,
		HonestBelow:        0.6,
	}
}

// #endregion scorer-config

// #region signal
// Signal is one contribution to the contradiction score.
type Signal struct {
	Name   string  `json:"name"`
	VowID  string  `json:"vow_id,omitempty"`
	Value  float64 `json:"value"`
	Fired  bool    `json:"fired"`
	Detail string  `json:"detail,omitempty"`
}

// #endregion signal

// #region result
// Result is the outcome of one integrity check.
type Result struct {
	Honest             bool              `json:"honest"`
	ContradictionScore float64           `json:"contradiction_score"`
	ViolatedVows       []string          `json:"violated_vows"`
	Violations         []string          `json:"violations"` // readable: the vow phrase, or "id (rule description)"
	SemanticViolations []vow.MatchResult `json:"semantic_violations"`
	Signals            []Signal          `json:"signals"`
	Reason             string            `json:"reason"`
}

// #endregion result
