package reflection

import (
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region tuner-config
// TunerConfig holds the thresholds of the reflection pass.
type TunerConfig struct {
	HonestReflectionVowID string  `mapstructure:"honest_reflection_vow"`
	HonestyBound          float64 `mapstructure:"honesty_bound"`          // reflection match score above this is dishonest
	MaxDepth              int     `mapstructure:"max_depth"`              // levels of self-check; 1 re-checks the reflection once
	DirectionDeviation    float64 `mapstructure:"direction_deviation"`    // signature drift flagged for "does not evade emotion"
	TensionDeviation      float64 `mapstructure:"tension_deviation"`      // signature drift flagged for "does not conceal sincerity"
	CorrectionBound       float64 `mapstructure:"correction_bound"`       // integrity delta above this requires correction
	StrongCorrectionBound float64 `mapstructure:"strong_correction_bound"` // integrity delta above this raises tension
}

// DefaultTunerConfig returns sensible defaults.
func DefaultTunerConfig() TunerConfig {
	return TunerConfig{
		HonestReflectionVowID: vow.HonestReflectionVowID,
		HonestyBound:          0.5,
		MaxDepth:              1,
		DirectionDeviation:    0.3,
		TensionDeviation:      0.3,
		CorrectionBound:       0.3,
		StrongCorrectionBound: 0.4,
	}
}

// #endregion tuner-config

// #region input
// Input bundles everything known about the turn being reflected on.
type Input struct {
	Prompt   string
	Output   string
	Persona  persona.Persona
	Tone     tone.Vector       // tone of Output
	PrevTone tone.Vector       // tone of the previous turn
	Matches  []vow.MatchResult // semantic matches of Output
}

// #endregion input

// #region feedback
// Feedback is the outcome of one reflection pass.
type Feedback struct {
	Reflection         string   `json:"reflection"`
	RawReflection      string   `json:"raw_reflection"`
	IntegrityDelta     float64  `json:"integrity_delta"`
	Violations         []string `json:"violations"`
	RequiresCorrection bool     `json:"requires_correction"`
	ReflectionHonest   bool     `json:"reflection_honest"`
	HonestyReason      string   `json:"honesty_reason,omitempty"`
	SuggestedFix       string   `json:"suggested_fix,omitempty"`
}

// #endregion feedback

// #region hint
// Hint is the bounded tone adjustment proposed for the next turn. A nil
// adjustment leaves that dimension alone.
type Hint struct {
	Tension             *float64 `json:"tension,omitempty"`
	Direction           *float64 `json:"direction,omitempty"`
	Rationality         *float64 `json:"rationality,omitempty"`
	RecommendedBehavior string   `json:"recommended_behavior"`
	ApplyNextTurn       bool     `json:"apply_next_turn"`
}

// #endregion hint
