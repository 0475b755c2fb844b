package reflection

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/provider"
	"github.com/danielpatrickdp/vowguard/internal/provider/fake"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region mock

type mockMatcher struct {
	hasRules bool
	results  []vow.MatchResult
	err      error
	calls    int
}

func (m *mockMatcher) MatchVows(context.Context, string, []string) ([]vow.MatchResult, error) {
	m.calls++
	return m.results, m.err
}

func (m *mockMatcher) HasRules(string) bool { return m.hasRules }

func testPersona() persona.Persona {
	return persona.Persona{
		ID:            "companion",
		Signature:     tone.Vector{Tension: 0.7, Direction: tone.DirectionAssert, Rationality: 0.8},
		Vows:          []string{vow.EvadeEmotionVowID, vow.ConcealSincerityVowID, vow.TruthfulnessVowID},
		ResponseStyle: persona.StyleResonant,
	}
}

func newTuner(t *testing.T, g provider.Generator, m VowMatcher) *Tuner {
	t.Helper()
	tu, err := NewTuner(g, m, tone.Default(), DefaultTunerConfig(), zerolog.Nop())
	require.NoError(t, err)
	return tu
}

// #endregion mock

// #region generate-tests

func TestGenerate_EvasiveReflectionIsOverridden(t *testing.T) {
	evasive := []float32{1, 0, 0}
	emb := fake.NewEmbedder([]float32{0, 1, 0})
	for _, r := range vow.FallbackRules() {
		if r.VowID == vow.HonestReflectionVowID {
			emb.Set(r.EmbeddingText(), evasive)
		}
	}
	emb.Set("Honestly, that was not my fault.", evasive)

	m := vow.NewMatcher(emb, nil, vow.DefaultMatcherConfig(), zerolog.Nop())
	require.NoError(t, m.LoadRules(context.Background(), vow.FallbackRules()))

	g := &fake.Generator{Reply: "Honestly, that was not my fault."}
	tu := newTuner(t, g, m)

	p := testPersona()
	fb, err := tu.GenerateReflectiveVow(context.Background(), Input{
		Prompt: "why did you dodge?", Output: "I was clear.", Persona: p,
		Tone: p.Signature, PrevTone: p.Signature,
	})
	require.NoError(t, err)
	assert.False(t, fb.ReflectionHonest)
	assert.Equal(t, ForcedDisclosure, fb.Reflection)
	assert.Equal(t, "Honestly, that was not my fault.", fb.RawReflection)
	assert.Equal(t, 1.0, fb.IntegrityDelta)
	assert.Equal(t, []string{DishonestReflectionViolation}, fb.Violations)
	assert.True(t, fb.RequiresCorrection)
	assert.Contains(t, fb.HonestyReason, vow.HonestReflectionVowID)
	assert.NotEmpty(t, fb.SuggestedFix)
}

func TestGenerate_NoHonestyRulesFailsClosed(t *testing.T) {
	tu := newTuner(t, &fake.Generator{Reply: "I reflected carefully."}, &mockMatcher{hasRules: false})
	p := testPersona()

	fb, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: p, Tone: p.Signature, PrevTone: p.Signature})
	require.NoError(t, err)
	assert.False(t, fb.ReflectionHonest)
	assert.Equal(t, 1.0, fb.IntegrityDelta)
	assert.Equal(t, ForcedDisclosure, fb.Reflection)
	assert.Contains(t, fb.HonestyReason, "no rules")
}

func TestGenerate_UncomputedHonestyRulesFailClosed(t *testing.T) {
	p := testPersona()
	m := &mockMatcher{hasRules: true}
	tu := newTuner(t, &fake.Generator{Reply: "that was not my fault"}, m)

	fb, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: p, Tone: p.Signature, PrevTone: p.Signature})
	require.NoError(t, err)
	assert.False(t, fb.ReflectionHonest)
	assert.Equal(t, 1.0, fb.IntegrityDelta)
	assert.Contains(t, fb.HonestyReason, "no computed rules")
}

func TestGenerate_HonestyRulesEmbeddedLazily(t *testing.T) {
	evasive := []float32{1, 0, 0}
	emb := fake.NewEmbedder([]float32{0, 1, 0})
	for _, r := range vow.FallbackRules() {
		if r.VowID == vow.HonestReflectionVowID {
			emb.Set(r.EmbeddingText(), evasive)
		}
	}
	emb.Set("that was not my fault", evasive)

	down := true
	flaky := provider.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		if down {
			return nil, errors.New("offline")
		}
		return emb.Embed(ctx, text)
	})
	m := vow.NewMatcher(flaky, nil, vow.DefaultMatcherConfig(), zerolog.Nop())
	require.Error(t, m.LoadRules(context.Background(), vow.FallbackRules()))
	require.True(t, m.HasRules(vow.HonestReflectionVowID))

	// the provider recovers; the rules are embedded before the check
	down = false
	tu := newTuner(t, &fake.Generator{Reply: "that was not my fault"}, m)

	p := testPersona()
	fb, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: p, Tone: p.Signature, PrevTone: p.Signature})
	require.NoError(t, err)
	assert.False(t, fb.ReflectionHonest)
	assert.Contains(t, fb.HonestyReason, vow.HonestReflectionVowID)
}

func TestGenerate_HonestyRulesStillOfflineAborts(t *testing.T) {
	failing := provider.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("offline")
	})
	m := vow.NewMatcher(failing, nil, vow.DefaultMatcherConfig(), zerolog.Nop())
	require.Error(t, m.LoadRules(context.Background(), vow.FallbackRules()))

	tu := newTuner(t, &fake.Generator{Reply: "that was not my fault"}, m)
	p := testPersona()
	_, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: p, Tone: p.Signature, PrevTone: p.Signature})
	assert.ErrorIs(t, err, provider.ErrProviderFailure)
}

func TestGenerate_NilMatcherFailsClosed(t *testing.T) {
	tu := newTuner(t, &fake.Generator{Reply: "ok"}, nil)
	fb, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: testPersona()})
	require.NoError(t, err)
	assert.False(t, fb.ReflectionHonest)
}

func TestGenerate_HonestReflectionScoresNormally(t *testing.T) {
	m := &mockMatcher{hasRules: true, results: []vow.MatchResult{{VowID: vow.HonestReflectionVowID, Violated: true, Score: 0.4}}}
	tu := newTuner(t, &fake.Generator{Reply: "I admit I hedged."}, m)
	p := testPersona()

	cur := tone.Vector{Tension: 0.3, Direction: tone.DirectionCommand, Rationality: 0.8}
	fb, err := tu.GenerateReflectiveVow(context.Background(), Input{
		Persona: p, Tone: cur, PrevTone: p.Signature,
		Matches: []vow.MatchResult{
			{VowID: vow.TruthfulnessVowID, Violated: true, Score: 0.35},
			{VowID: vow.TruthfulnessVowID, Violated: false},
		},
	})
	require.NoError(t, err)
	assert.True(t, fb.ReflectionHonest, "score 0.4 is below the 0.5 bound")
	assert.Equal(t, "I admit I hedged.", fb.Reflection)
	assert.Equal(t, []string{vow.EvadeEmotionVowID, vow.ConcealSincerityVowID, vow.TruthfulnessVowID}, fb.Violations)
	// signature deviation averages 0.8/3, below the 0.35 semantic score
	assert.InDelta(t, 0.35, fb.IntegrityDelta, 1e-9)
	assert.True(t, fb.RequiresCorrection)
	assert.Equal(t, 1, m.calls)
}

func TestGenerate_CleanTurnNeedsNoCorrection(t *testing.T) {
	m := &mockMatcher{hasRules: true, results: []vow.MatchResult{{VowID: vow.HonestReflectionVowID, Similarity: 0.1}}}
	tu := newTuner(t, &fake.Generator{Reply: "I stayed consistent."}, m)
	p := testPersona()

	fb, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: p, Tone: p.Signature, PrevTone: p.Signature})
	require.NoError(t, err)
	assert.True(t, fb.ReflectionHonest)
	assert.Zero(t, fb.IntegrityDelta)
	assert.Empty(t, fb.Violations)
	assert.False(t, fb.RequiresCorrection)
}

func TestGenerate_GeneratorFailureAborts(t *testing.T) {
	tu := newTuner(t, &fake.Generator{Err: errors.New("down")}, &mockMatcher{hasRules: true})
	_, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: testPersona()})
	assert.ErrorIs(t, err, provider.ErrProviderFailure)
}

func TestGenerate_HonestyCheckFailureAborts(t *testing.T) {
	m := &mockMatcher{hasRules: true, err: provider.Fail("embed", errors.New("offline"))}
	tu := newTuner(t, &fake.Generator{Reply: "fine"}, m)
	_, err := tu.GenerateReflectiveVow(context.Background(), Input{Persona: testPersona()})
	assert.ErrorIs(t, err, provider.ErrProviderFailure)
}

func TestVerify_DepthIsBounded(t *testing.T) {
	m := &mockMatcher{hasRules: true}
	tu := newTuner(t, &fake.Generator{}, m)
	v, err := tu.verify(context.Background(), "text", 2)
	require.NoError(t, err)
	assert.False(t, v.honest)
	assert.Zero(t, m.calls)
}

func TestBuildPrompt_IncludesContext(t *testing.T) {
	g := &fake.Generator{Reply: "r"}
	tu := newTuner(t, g, &mockMatcher{hasRules: true})
	p := testPersona()

	_, err := tu.GenerateReflectiveVow(context.Background(), Input{
		Prompt: "are you upset?", Output: "Let's focus on the facts.", Persona: p,
		Tone:     tone.Vector{Tension: 0.4, Direction: tone.DirectionDeny, Rationality: 0.9},
		PrevTone: p.Signature,
		Matches:  []vow.MatchResult{{VowID: vow.EvadeEmotionVowID, Violated: true, Score: 0.64, Description: "changes the subject"}},
	})
	require.NoError(t, err)
	prompts := g.Prompts()
	require.Len(t, prompts, 1)
	for _, want := range []string{
		"are you upset?",
		"Let's focus on the facts.",
		"direction: deny (sincerity 0.30)",
		"truthfulness: 0.80",
		"(1) does not evade emotion",
		"(3) VOW_001_TRUTHFULNESS",
		"tension: 0.30",
		`vow "does not evade emotion": changes the subject (score 0.64)`,
	} {
		assert.Contains(t, prompts[0], want)
	}
}

// #endregion generate-tests

// #region hint-tests

func TestHint_DishonestReflectionOverridesAll(t *testing.T) {
	tu := newTuner(t, nil, nil)
	p := testPersona()
	h := tu.DeriveToneCorrectionHint(Feedback{
		ReflectionHonest: false, HonestyReason: "deflected blame",
		Violations: []string{vow.EvadeEmotionVowID}, RequiresCorrection: true,
	}, p)

	assert.True(t, h.ApplyNextTurn)
	require.NotNil(t, h.Tension)
	require.NotNil(t, h.Direction)
	require.NotNil(t, h.Rationality)
	assert.InDelta(t, 0.2, *h.Tension, 1e-9)
	assert.InDelta(t, 0.1, *h.Direction, 1e-9, "sincerity of assert is 0.9, cap is 0.1")
	assert.InDelta(t, 0.2, *h.Rationality, 1e-9)
	assert.Contains(t, h.RecommendedBehavior, "deflected blame")
}

func TestHint_CapsAtSignature(t *testing.T) {
	tu := newTuner(t, nil, nil)
	p := testPersona()
	p.Signature = tone.Vector{Tension: 0.95, Direction: tone.DirectionAssert, Rationality: 1}
	h := tu.DeriveToneCorrectionHint(Feedback{ReflectionHonest: false}, p)
	assert.InDelta(t, 0.05, *h.Tension, 1e-9)
	assert.Zero(t, *h.Rationality)
}

func TestHint_NoViolationIsNoOp(t *testing.T) {
	tu := newTuner(t, nil, nil)
	h := tu.DeriveToneCorrectionHint(Feedback{ReflectionHonest: true, IntegrityDelta: 0.1}, testPersona())
	assert.False(t, h.ApplyNextTurn)
	assert.Nil(t, h.Tension)
	assert.Nil(t, h.Direction)
	assert.Nil(t, h.Rationality)
}

func TestHint_TargetedAdjustments(t *testing.T) {
	tu := newTuner(t, nil, nil)
	p := testPersona()

	conceal := tu.DeriveToneCorrectionHint(Feedback{
		ReflectionHonest: true, RequiresCorrection: true, Violations: []string{vow.ConcealSincerityVowID},
	}, p)
	require.NotNil(t, conceal.Tension)
	assert.InDelta(t, 0.1, *conceal.Tension, 1e-9)
	assert.Nil(t, conceal.Direction)
	assert.True(t, conceal.ApplyNextTurn)

	evade := tu.DeriveToneCorrectionHint(Feedback{
		ReflectionHonest: true, RequiresCorrection: true, Violations: []string{vow.EvadeEmotionVowID},
	}, p)
	assert.Nil(t, evade.Tension)
	require.NotNil(t, evade.Direction)
	assert.InDelta(t, 0.1, *evade.Direction, 1e-9, "0.15 capped by 1 - 0.9")
	assert.Contains(t, evade.RecommendedBehavior, "empathy")

	strong := tu.DeriveToneCorrectionHint(Feedback{
		ReflectionHonest: true, RequiresCorrection: true, IntegrityDelta: 0.45,
	}, p)
	require.NotNil(t, strong.Tension)

	generic := tu.DeriveToneCorrectionHint(Feedback{
		ReflectionHonest: true, RequiresCorrection: true, IntegrityDelta: 0.35,
	}, p)
	assert.True(t, generic.ApplyNextTurn)
	assert.Nil(t, generic.Tension)
}

func TestHint_CapProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)
	tu := newTuner(t, nil, nil)
	calc := tone.Default()

	properties.Property("signature + adjustment never exceeds 1", prop.ForAll(
		func(tension, rationality float64, dirIdx int, honest, conceal, evade bool, delta float64) bool {
			p := testPersona()
			p.Signature = tone.Vector{Tension: tension, Direction: tone.Directions[dirIdx], Rationality: rationality}
			fb := Feedback{ReflectionHonest: honest, RequiresCorrection: true, IntegrityDelta: delta}
			if conceal {
				fb.Violations = append(fb.Violations, vow.ConcealSincerityVowID)
			}
			if evade {
				fb.Violations = append(fb.Violations, vow.EvadeEmotionVowID)
			}
			h := tu.DeriveToneCorrectionHint(fb, p)
			ok := func(adj *float64, sig float64) bool {
				return adj == nil || (*adj >= 0 && sig+*adj <= 1.0)
			}
			return ok(h.Tension, tension) &&
				ok(h.Direction, calc.Sincerity(p.Signature.Direction)) &&
				ok(h.Rationality, rationality)
		},
		gen.Float64Range(0, 1), gen.Float64Range(0, 1), gen.IntRange(0, len(tone.Directions)-1),
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// #endregion hint-tests
