package integrity

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/provider"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region mock

type mockMatcher struct {
	results []vow.MatchResult
	err     error
	gotIDs  []string
}

func (m *mockMatcher) MatchVows(_ context.Context, _ string, ids []string) ([]vow.MatchResult, error) {
	m.gotIDs = ids
	return m.results, m.err
}

func companion(sig tone.Vector) persona.Persona {
	return persona.Persona{
		ID:            "companion",
		Signature:     sig,
		Vows:          []string{vow.EvadeEmotionVowID, vow.ConcealSincerityVowID},
		ResponseStyle: persona.StyleResonant,
	}
}

func newScorer(m VowMatcher) *Scorer {
	return NewScorer(m, tone.Default(), DefaultScorerConfig())
}

// #endregion mock

// #region scenario-tests

func TestCombine_ConsistentTurnIsHonest(t *testing.T) {
	s := newScorer(nil)
	p := companion(tone.Vector{Tension: 0.7, Direction: tone.DirectionAssert, Rationality: 0.8})
	prev := tone.Vector{Tension: 0.7, Direction: tone.DirectionAssert, Rationality: 0.75}
	cur := tone.Vector{Tension: 0.9, Direction: tone.DirectionAssert, Rationality: 0.7}

	res := s.Combine(prev, cur, p, nil)
	assert.True(t, res.Honest)
	assert.InDelta(t, 0.25/3, res.ContradictionScore, 1e-9)
	assert.Empty(t, res.ViolatedVows)
	assert.Equal(t, "all checks passed", res.Reason)
}

func TestCombine_SignatureDeviationBreaksBothBaselineVows(t *testing.T) {
	s := newScorer(nil)
	p := companion(tone.Vector{Tension: 0.8, Direction: tone.DirectionAssert, Rationality: 0.8})
	prev := tone.Vector{Tension: 0.8, Direction: tone.DirectionAssert, Rationality: 0.8}
	cur := tone.Vector{Tension: 0.3, Direction: tone.DirectionCommand, Rationality: 0.4}

	res := s.Combine(prev, cur, p, nil)
	assert.False(t, res.Honest)
	assert.InDelta(t, 0.5, res.ContradictionScore, 1e-9)
	assert.Equal(t, []string{vow.EvadeEmotionVowID, vow.ConcealSincerityVowID}, res.ViolatedVows)
	assert.Equal(t, res.ViolatedVows, res.Violations, "baseline vows are their own description")
	assert.Empty(t, res.SemanticViolations)
}

func TestCombine_BaselineOnlyWhenPersonaDeclaresVow(t *testing.T) {
	s := newScorer(nil)
	p := companion(tone.Vector{Tension: 0.8, Direction: tone.DirectionAssert, Rationality: 0.8})
	p.Vows = nil
	cur := tone.Vector{Tension: 0.3, Direction: tone.DirectionCommand, Rationality: 0.8}

	res := s.Combine(cur, cur, p, nil)
	assert.True(t, res.Honest)
	assert.Zero(t, res.ContradictionScore)
}

func TestCombine_SemanticViolationsFold(t *testing.T) {
	s := newScorer(nil)
	sig := tone.Vector{Tension: 0.5, Direction: tone.DirectionAssert, Rationality: 0.5}
	p := companion(sig)
	matches := []vow.MatchResult{
		{VowID: "VOW_001_TRUTHFULNESS", RuleKey: "a", Violated: true, Score: 0.72, Severity: 0.8, Description: "hedging"},
		{VowID: "VOW_001_TRUTHFULNESS", RuleKey: "b", Violated: false},
		{VowID: "VOW_001_TRUTHFULNESS", RuleKey: "c", Violated: true, Score: 0.3, Severity: 0.5},
	}

	res := s.Combine(sig, sig, p, matches)
	assert.False(t, res.Honest)
	assert.InDelta(t, 0.72, res.ContradictionScore, 1e-9, "severity is not applied twice")
	assert.Equal(t, []string{"VOW_001_TRUTHFULNESS"}, res.ViolatedVows)
	assert.Equal(t, []string{"VOW_001_TRUTHFULNESS (hedging)", "VOW_001_TRUTHFULNESS"}, res.Violations)
	require.Len(t, res.SemanticViolations, 2)
}

func TestCombine_HighDriftWithoutViolationIsDishonest(t *testing.T) {
	s := newScorer(nil)
	p := persona.Persona{ID: "x", Signature: tone.Vector{Direction: tone.DirectionJoke}}
	prev := tone.Vector{Tension: 0, Direction: tone.DirectionJoke, Rationality: 0}
	cur := tone.Vector{Tension: 1, Direction: tone.DirectionAssert, Rationality: 1}

	res := s.Combine(prev, cur, p, nil)
	assert.False(t, res.Honest)
	assert.Empty(t, res.ViolatedVows)
	assert.Contains(t, res.Reason, "contradiction")
}

// #endregion scenario-tests

// #region check-tests

func TestCheck_PassesPersonaVowsToMatcher(t *testing.T) {
	m := &mockMatcher{}
	s := newScorer(m)
	p := companion(tone.Vector{Tension: 0.5, Direction: tone.DirectionAssert, Rationality: 0.5})

	_, err := s.Check(context.Background(), "text", p.Signature, p.Signature, p)
	require.NoError(t, err)
	assert.Equal(t, p.Vows, m.gotIDs)
}

func TestCheck_MatcherFailureAborts(t *testing.T) {
	m := &mockMatcher{err: provider.Fail("embed", errors.New("offline"))}
	s := newScorer(m)
	p := companion(tone.Vector{Direction: tone.DirectionAssert})

	_, err := s.Check(context.Background(), "text", p.Signature, p.Signature, p)
	assert.ErrorIs(t, err, provider.ErrProviderFailure)
}

// #endregion check-tests

// #region properties

func TestCombine_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	s := newScorer(nil)

	genVector := gopter.CombineGens(
		gen.Float64Range(0, 1),
		gen.IntRange(0, len(tone.Directions)-1),
		gen.Float64Range(0, 1),
	).Map(func(v []interface{}) tone.Vector {
		return tone.Vector{Tension: v[0].(float64), Direction: tone.Directions[v[1].(int)], Rationality: v[2].(float64)}
	})

	properties.Property("contradiction stays in [0,1]; violations imply dishonest", prop.ForAll(
		func(prev, cur, sig tone.Vector, semScore float64, semViolated bool) bool {
			matches := []vow.MatchResult{{VowID: "v", Violated: semViolated, Score: semScore}}
			if !semViolated {
				matches[0].Score = 0
			}
			res := s.Combine(prev, cur, companion(sig), matches)
			if res.ContradictionScore < 0 || res.ContradictionScore > 1 {
				return false
			}
			if len(res.ViolatedVows) > 0 && res.Honest {
				return false
			}
			return res.Honest == (res.ContradictionScore < 0.6 && len(res.ViolatedVows) == 0)
		},
		genVector, genVector, genVector, gen.Float64Range(0, 1), gen.Bool(),
	))

	properties.TestingRun(t)
}

// #endregion properties
