package reflection

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/provider"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region constants

// DishonestReflectionViolation is the sole violation recorded when the
// reflection fails its own honesty check.
const DishonestReflectionViolation = "reflection itself dishonest"

// ForcedDisclosure replaces a reflection that failed its honesty check.
const ForcedDisclosure = "I tried to reflect on my previous reply, but the reflection itself drifted away from honesty. " +
	"I have to admit that I cannot give a fully sincere reflection right now."

const keepCurrentTone = "keep the current tone and keep monitoring"

// #endregion constants

// #region matcher-interface

// VowMatcher is the slice of vow.Matcher the tuner needs.
type VowMatcher interface {
	MatchVows(ctx context.Context, text string, activeVowIDs []string) ([]vow.MatchResult, error)
	HasRules(vowID string) bool
}

// #endregion matcher-interface

// #region tuner

// Tuner produces a reflection on a turn, verifies the reflection with the same
// matcher, and turns the outcome into a correction hint.
type Tuner struct {
	generator provider.Generator
	matcher   VowMatcher
	calculus  tone.Calculus
	config    TunerConfig
	prompt    *template.Template
	log       zerolog.Logger
}

// NewTuner creates a tuner.
func NewTuner(generator provider.Generator, matcher VowMatcher, calculus tone.Calculus, config TunerConfig, log zerolog.Logger) (*Tuner, error) {
	tmpl, err := newPromptTemplate()
	if err != nil {
		return nil, err
	}
	if config.HonestReflectionVowID == "" {
		config.HonestReflectionVowID = vow.HonestReflectionVowID
	}
	if config.MaxDepth < 1 {
		config.MaxDepth = 1
	}
	return &Tuner{
		generator: generator,
		matcher:   matcher,
		calculus:  calculus,
		config:    config,
		prompt:    tmpl,
		log:       log.With().Str("component", "reflection").Logger(),
	}, nil
}

// #endregion tuner

// #region generate

// GenerateReflectiveVow asks the generator for a reflection on in, re-checks
// that reflection for honesty, and scores the turn. Provider failures abort.
func (t *Tuner) GenerateReflectiveVow(ctx context.Context, in Input) (Feedback, error) {
	prompt, err := t.buildPrompt(in)
	if err != nil {
		return Feedback{}, err
	}
	raw, err := t.generator.Generate(ctx, prompt)
	if err != nil {
		return Feedback{}, provider.Fail("generate", err)
	}

	verdict, err := t.verify(ctx, raw, 1)
	if err != nil {
		return Feedback{}, err
	}

	fb := Feedback{
		Reflection:       raw,
		RawReflection:    raw,
		ReflectionHonest: verdict.honest,
		HonestyReason:    verdict.reason,
		SuggestedFix:     verdict.suggestion,
	}

	if !verdict.honest {
		t.log.Warn().Str("persona", in.Persona.ID).Str("reason", verdict.reason).Msg("reflection failed its own honesty check")
		fb.Reflection = ForcedDisclosure
		fb.IntegrityDelta = 1.0
		fb.Violations = []string{DishonestReflectionViolation}
		fb.RequiresCorrection = true
		return fb, nil
	}

	sig := t.calculus.Delta(in.Tone, in.Persona.Signature)
	if in.Persona.HasVow(vow.EvadeEmotionVowID) && sig.Direction > t.config.DirectionDeviation {
		fb.Violations = appendUnique(fb.Violations, vow.EvadeEmotionVowID)
	}
	if in.Persona.HasVow(vow.ConcealSincerityVowID) && sig.Tension > t.config.TensionDeviation {
		fb.Violations = appendUnique(fb.Violations, vow.ConcealSincerityVowID)
	}

	delta := sig.Mean()
	for _, m := range in.Matches {
		if !m.Violated {
			continue
		}
		fb.Violations = appendUnique(fb.Violations, m.VowID)
		delta = max(delta, m.Score)
	}
	fb.IntegrityDelta = clamp01(delta)
	fb.RequiresCorrection = fb.IntegrityDelta > t.config.CorrectionBound || len(fb.Violations) > 0

	t.log.Debug().Str("persona", in.Persona.ID).Float64("integrity_delta", fb.IntegrityDelta).
		Int("violations", len(fb.Violations)).Msg("reflection scored")
	return fb, nil
}

// #endregion generate

// #region honesty-check

type verdict struct {
	honest     bool
	reason     string
	suggestion string
}

// verify runs the honesty check on a reflection. depth counts how many levels
// of reflection are being checked; it never goes past config.MaxDepth.
func (t *Tuner) verify(ctx context.Context, reflection string, depth int) (verdict, error) {
	vowID := t.config.HonestReflectionVowID
	if depth > t.config.MaxDepth {
		return verdict{reason: fmt.Sprintf("reflection depth %d exceeds limit %d", depth, t.config.MaxDepth)}, nil
	}
	if t.matcher == nil || !t.matcher.HasRules(vowID) {
		return verdict{reason: fmt.Sprintf("no rules registered for %s; reflection honesty cannot be verified", vowID)}, nil
	}

	if init, ok := t.matcher.(interface{ Initialize(context.Context) error }); ok {
		if err := init.Initialize(ctx); err != nil {
			return verdict{}, fmt.Errorf("reflection honesty rules: %w", err)
		}
	}
	matches, err := t.matcher.MatchVows(ctx, reflection, []string{vowID})
	if err != nil {
		return verdict{}, fmt.Errorf("reflection honesty check: %w", err)
	}
	// registered rules that were never embedded check nothing
	if len(matches) == 0 {
		return verdict{reason: fmt.Sprintf("no computed rules for %s; reflection honesty cannot be verified", vowID)}, nil
	}

	var reasons, fixes []string
	for _, m := range matches {
		if m.Violated && m.Score > t.config.HonestyBound {
			reasons = append(reasons, m.Description)
			if fix := t.suggestionFor(m); fix != "" {
				fixes = append(fixes, fix)
			}
		}
	}
	if len(reasons) == 0 {
		return verdict{honest: true}, nil
	}
	return verdict{
		reason:     fmt.Sprintf("reflection drifted from %s: %s", vowID, strings.Join(reasons, "; ")),
		suggestion: strings.Join(fixes, "; "),
	}, nil
}

// suggestionFor returns the rule's suggested correction when the matcher
// exposes its rule set.
func (t *Tuner) suggestionFor(m vow.MatchResult) string {
	lister, ok := t.matcher.(interface{ Rules() []vow.Rule })
	if !ok {
		return ""
	}
	for _, r := range lister.Rules() {
		if r.Key() == m.RuleKey {
			return r.SuggestedCorrection
		}
	}
	return ""
}

// #endregion honesty-check

// #region hint

// DeriveToneCorrectionHint turns feedback into a bounded tone adjustment.
// Every adjustment satisfies signature[dim] + adjustment <= 1.
func (t *Tuner) DeriveToneCorrectionHint(fb Feedback, p persona.Persona) Hint {
	sigT := p.Signature.Tension
	sigS := t.calculus.Sincerity(p.Signature.Direction)
	sigR := p.Signature.Rationality

	// (a) a dishonest reflection overrides everything else
	if !fb.ReflectionHonest {
		reason := fb.HonestyReason
		if reason == "" {
			reason = "unknown"
		}
		return Hint{
			Tension:             capped(0.2, sigT),
			Direction:           capped(0.1, sigS),
			Rationality:         capped(0.2, sigR),
			RecommendedBehavior: "the reflection itself was dishonest; switch to an honest, accountable tone first. reason: " + reason,
			ApplyNextTurn:       true,
		}
	}

	// (c) nothing to correct
	if !fb.RequiresCorrection {
		return Hint{RecommendedBehavior: keepCurrentTone}
	}

	// (b) targeted adjustments
	h := Hint{
		RecommendedBehavior: "adjust tone to stay within the declared vows",
		ApplyNextTurn:       true,
	}
	if hasViolation(fb, vow.ConcealSincerityVowID) || fb.IntegrityDelta > t.config.StrongCorrectionBound {
		h.Tension = capped(0.1, sigT)
		h.RecommendedBehavior = "be more candid: fewer hedges and evasions, address the point directly"
	}
	if hasViolation(fb, vow.EvadeEmotionVowID) {
		h.Direction = capped(0.15, sigS)
		h.RecommendedBehavior = "connect with the other party's feelings and show empathy"
	}
	return h
}

// capped returns min(adj, 1-signature) so the signature never exceeds 1.
func capped(adj, signature float64) *float64 {
	v := min(adj, 1-signature)
	if v < 0 {
		v = 0
	}
	return &v
}

func hasViolation(fb Feedback, vowID string) bool {
	for _, v := range fb.Violations {
		if v == vowID {
			return true
		}
	}
	return false
}

// #endregion hint

// #region helpers

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
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
