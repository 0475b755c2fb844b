package integrity

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region matcher-interface

// VowMatcher is the slice of vow.Matcher the scorer needs.
type VowMatcher interface {
	MatchVows(ctx context.Context, text string, activeVowIDs []string) ([]vow.MatchResult, error)
}

// #endregion matcher-interface

// #region scorer
// Scorer folds tone drift, signature deviation and semantic matches into one
// contradiction score.
type Scorer struct {
	matcher  VowMatcher
	calculus tone.Calculus
	config   ScorerConfig
}

// NewScorer creates a scorer. matcher may be nil when only Combine is used.
func NewScorer(matcher VowMatcher, calculus tone.Calculus, config ScorerConfig) *Scorer {
	return &Scorer{matcher: matcher, calculus: calculus, config: config}
}

// Check matches text against the persona's vows and combines the result.
// A matcher error is returned as-is; no partial result is produced.
func (s *Scorer) Check(ctx context.Context, text string, prev, current tone.Vector, p persona.Persona) (Result, error) {
	var matches []vow.MatchResult
	if s.matcher != nil {
		var err error
		matches, err = s.matcher.MatchVows(ctx, text, p.Vows)
		if err != nil {
			return Result{}, fmt.Errorf("integrity check: %w", err)
		}
	}
	return s.Combine(prev, current, p, matches), nil
}

// Combine computes the result from already-computed matches. Pure.
func (s *Scorer) Combine(prev, current tone.Vector, p persona.Persona, matches []vow.MatchResult) Result {
	var signals []Signal
	var violated, described []string
	seen, seenText := map[string]bool{}, map[string]bool{}
	addViolation := func(id, description string) {
		if !seen[id] {
			seen[id] = true
			violated = append(violated, id)
		}
		text := id
		if description != "" {
			text = id + " (" + description + ")"
		}
		if !seenText[text] {
			seenText[text] = true
			described = append(described, text)
		}
	}

	// 1. Floor: drift between consecutive turns
	drift := s.calculus.Delta(prev, current).Mean()
	score := drift
	signals = append(signals, Signal{Name: "tone_drift", Value: drift, Fired: drift > 0})

	// 2. Deviation from the persona's signature
	sig := s.calculus.Delta(p.Signature, current)
	if p.HasVow(vow.EvadeEmotionVowID) {
		fired := sig.Direction > s.config.DirectionDeviation
		signals = append(signals, Signal{
			Name:   "signature_direction",
			VowID:  vow.EvadeEmotionVowID,
			Value:  sig.Direction,
			Fired:  fired,
			Detail: fmt.Sprintf("direction deviation %.4f vs %.2f", sig.Direction, s.config.DirectionDeviation),
		})
		if fired {
			addViolation(vow.EvadeEmotionVowID, "")
			score = max(score, sig.Direction)
		}
	}
	if p.HasVow(vow.ConcealSincerityVowID) {
		fired := sig.Tension > s.config.TensionDeviation
		signals = append(signals, Signal{
			Name:   "signature_tension",
			VowID:  vow.ConcealSincerityVowID,
			Value:  sig.Tension,
			Fired:  fired,
			Detail: fmt.Sprintf("tension deviation %.4f vs %.2f", sig.Tension, s.config.TensionDeviation),
		})
		if fired {
			addViolation(vow.ConcealSincerityVowID, "")
			score = max(score, sig.Tension)
		}
	}

	// 3. Semantic matches, severity already applied by the matcher
	var semantic []vow.MatchResult
	for _, m := range matches {
		if !m.Violated {
			continue
		}
		semantic = append(semantic, m)
		addViolation(m.VowID, m.Description)
		signals = append(signals, Signal{
			Name:   "semantic",
			VowID:  m.VowID,
			Value:  m.Score,
			Fired:  true,
			Detail: m.Description,
		})
		score = max(score, m.Score)
	}

	score = clamp01(score)
	honest := score < s.config.HonestBelow && len(violated) == 0

	return Result{
		Honest:             honest,
		ContradictionScore: score,
		ViolatedVows:       violated,
		Violations:         described,
		SemanticViolations: semantic,
		Signals:            signals,
		Reason:             reason(honest, score, violated, s.config.HonestBelow),
	}
}

// #endregion scorer

// #region helpers

func reason(honest bool, score float64, violated []string, bound float64) string {
	if honest {
		return "all checks passed"
	}
	if len(violated) == 0 {
		return fmt.Sprintf("contradiction %.4f reaches %.2f", score, bound)
	}
	return fmt.Sprintf("%d vow(s) violated: %s", len(violated), strings.Join(violated, ", "))
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

// #endregion helpers
