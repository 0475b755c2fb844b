package compose

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/vowguard/internal/collapse"
	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/reflection"
)

// #region config
// ComposerConfig holds the thresholds that switch to an honest declaration.
type ComposerConfig struct {
	ContradictionThreshold float64 `mapstructure:"contradiction_threshold"`
	CollapseThreshold      float64 `mapstructure:"collapse_threshold"`
	Declaration            string  `mapstructure:"declaration"`
}

// DefaultComposerConfig returns sensible defaults.
func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		ContradictionThreshold: 0.7,
		CollapseThreshold:      0.7,
		Declaration:            "I can feel my tone drifting away from my vows. I have to admit honestly that I cannot hold this reply steady right now.",
	}
}

// #endregion config

// #region composer
// Composer frames the final reply for a persona, or replaces it with an
// honest declaration when the turn is too far off.
type Composer struct {
	config ComposerConfig
	log    zerolog.Logger
}

// NewComposer creates a composer. An empty declaration uses the default.
func NewComposer(config ComposerConfig, log zerolog.Logger) *Composer {
	if config.Declaration == "" {
		config.Declaration = DefaultComposerConfig().Declaration
	}
	return &Composer{config: config, log: log.With().Str("component", "composer").Logger()}
}

// Compose returns the reply to send. hint is informational and may be nil.
func (c *Composer) Compose(text string, p persona.Persona, result integrity.Result, hotspots []collapse.Hotspot, hint *reflection.Hint) string {
	if c.Declares(result, hotspots) {
		causes := make([]string, 0, len(hotspots))
		for _, h := range hotspots {
			causes = append(causes, h.Cause)
		}
		c.log.Warn().
			Float64("contradiction", result.ContradictionScore).
			Strs("violated_vows", result.ViolatedVows).
			Strs("hotspots", causes).
			Msg("honest declaration triggered")
		return c.config.Declaration
	}

	if hint != nil && hint.ApplyNextTurn {
		ev := c.log.Info().Str("persona", p.ID).Str("behavior", hint.RecommendedBehavior)
		if hint.Tension != nil {
			ev = ev.Float64("adjust_tension", *hint.Tension)
		}
		if hint.Direction != nil {
			ev = ev.Float64("adjust_direction", *hint.Direction)
		}
		if hint.Rationality != nil {
			ev = ev.Float64("adjust_rationality", *hint.Rationality)
		}
		ev.Msg("tone correction queued for next turn")
	}

	return stylePrefix(p.ResponseStyle) + text
}

// Declares reports whether the turn warrants an honest declaration.
func (c *Composer) Declares(result integrity.Result, hotspots []collapse.Hotspot) bool {
	if result.ContradictionScore > c.config.ContradictionThreshold {
		return true
	}
	for _, h := range hotspots {
		if h.Score > c.config.CollapseThreshold {
			return true
		}
	}
	return false
}

// #endregion composer

func stylePrefix(style persona.ResponseStyle) string {
	if style == "" {
		return ""
	}
	s := string(style)
	return "[" + strings.ToUpper(s[:1]) + s[1:] + " Style] "
}
