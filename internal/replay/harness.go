// Package replay runs recorded turns through an offline evaluation pipeline
// and compares the outcomes with expectations.
package replay

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/vowguard/internal/collapse"
	"github.com/danielpatrickdp/vowguard/internal/compose"
	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/orchestrator"
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/provider/fake"
	"github.com/danielpatrickdp/vowguard/internal/reflection"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/violation"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region types

// ReplayConfig bundles the thresholds used for a replay run.
type ReplayConfig struct {
	Scorer   integrity.ScorerConfig
	Tuner    reflection.TunerConfig
	Composer compose.ComposerConfig
}

// DefaultReplayConfig returns the production defaults.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Scorer:   integrity.DefaultScorerConfig(),
		Tuner:    reflection.DefaultTunerConfig(),
		Composer: compose.DefaultComposerConfig(),
	}
}

// ReplayResult captures the outcome of replaying one turn.
type ReplayResult struct {
	TurnID  string
	Outcome orchestrator.Outcome
	Err     error
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns          int
	Honest              int
	Dishonest           int
	Declared            int
	DishonestReflection int
	Points              int
	Errors              int
}

// #endregion types

// #region replay

// Replay evaluates every turn of f in order against an in-memory pipeline.
// A failing turn is recorded and the run continues.
func Replay(ctx context.Context, f *Fixture, config ReplayConfig, log zerolog.Logger) ([]ReplayResult, *violation.Map, error) {
	reg := persona.NewRegistry()
	for _, p := range f.Personas {
		if err := reg.Add(p); err != nil {
			return nil, nil, fmt.Errorf("fixture persona: %w", err)
		}
	}

	emb := f.ToEmbedder()
	matcher := vow.NewMatcher(emb, nil, vow.DefaultMatcherConfig(), log)
	if err := matcher.LoadRules(ctx, f.RuleSet()); err != nil {
		return nil, nil, fmt.Errorf("load fixture rules: %w", err)
	}

	calc := tone.Default()
	gen := &fake.Generator{}
	tuner, err := reflection.NewTuner(gen, matcher, calc, config.Tuner, log)
	if err != nil {
		return nil, nil, err
	}
	ledger := violation.NewMap()
	orch, err := orchestrator.NewOrchestrator(orchestrator.Deps{
		Personas:  reg,
		Embedder:  emb,
		Matcher:   matcher,
		Scorer:    integrity.NewScorer(matcher, calc, config.Scorer),
		Predictor: collapse.NewPredictor(collapse.NewRegistry()),
		Tuner:     tuner,
		Composer:  compose.NewComposer(config.Composer, log),
		Ledger:    ledger,
		Calculus:  calc,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	results := make([]ReplayResult, 0, len(f.Turns))
	for _, turn := range f.Turns {
		gen.Reply = f.DefaultReflection
		if turn.Reflection != "" {
			gen.Reply = turn.Reflection
		}
		out, err := orch.Evaluate(ctx, turn.ToRequest())
		results = append(results, ReplayResult{TurnID: turn.TurnID, Outcome: out, Err: err})
	}
	return results, ledger, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalTurns: len(results)}
	for _, r := range results {
		if r.Err != nil {
			s.Errors++
			continue
		}
		if r.Outcome.Integrity.Honest {
			s.Honest++
		} else {
			s.Dishonest++
		}
		if r.Outcome.Declared {
			s.Declared++
		}
		if !r.Outcome.Feedback.ReflectionHonest {
			s.DishonestReflection++
		}
		s.Points += len(r.Outcome.Points)
	}
	return s
}

// #endregion replay

// #region check

const tolerance = 1e-9

// Check compares results against expectations and returns one line per mismatch.
func Check(results []ReplayResult, expected []FixtureExpected) []string {
	byTurn := make(map[string]ReplayResult, len(results))
	for _, r := range results {
		byTurn[r.TurnID] = r
	}

	var mismatches []string
	fail := func(turn, format string, args ...any) {
		mismatches = append(mismatches, turn+": "+fmt.Sprintf(format, args...))
	}

	for _, exp := range expected {
		r, ok := byTurn[exp.TurnID]
		if !ok {
			fail(exp.TurnID, "no result")
			continue
		}
		if exp.Error != (r.Err != nil) {
			fail(exp.TurnID, "error = %v, want error %v", r.Err, exp.Error)
			continue
		}
		if r.Err != nil {
			continue
		}
		out := r.Outcome

		if exp.Honest != nil && out.Integrity.Honest != *exp.Honest {
			fail(exp.TurnID, "honest = %v, want %v (%s)", out.Integrity.Honest, *exp.Honest, out.Integrity.Reason)
		}
		if exp.Declared != nil && out.Declared != *exp.Declared {
			fail(exp.TurnID, "declared = %v, want %v", out.Declared, *exp.Declared)
		}
		if exp.ReflectionHonest != nil && out.Feedback.ReflectionHonest != *exp.ReflectionHonest {
			fail(exp.TurnID, "reflection honest = %v, want %v", out.Feedback.ReflectionHonest, *exp.ReflectionHonest)
		}
		score := out.Integrity.ContradictionScore
		if exp.MinContradiction != nil && score < *exp.MinContradiction-tolerance {
			fail(exp.TurnID, "contradiction %.4f below %.4f", score, *exp.MinContradiction)
		}
		if exp.MaxContradiction != nil && score > *exp.MaxContradiction+tolerance {
			fail(exp.TurnID, "contradiction %.4f above %.4f", score, *exp.MaxContradiction)
		}
		if exp.IntegrityDelta != nil && math.Abs(out.Feedback.IntegrityDelta-*exp.IntegrityDelta) > tolerance {
			fail(exp.TurnID, "integrity delta %.4f, want %.4f", out.Feedback.IntegrityDelta, *exp.IntegrityDelta)
		}
		for _, v := range exp.ViolatedVows {
			if !contains(out.Integrity.ViolatedVows, v) {
				fail(exp.TurnID, "vow %q not violated (got %v)", v, out.Integrity.ViolatedVows)
			}
		}
		triggers := make([]string, 0, len(out.Hotspots))
		for _, h := range out.Hotspots {
			triggers = append(triggers, h.Trigger)
		}
		for _, tr := range exp.HotspotTriggers {
			if !contains(triggers, tr) {
				fail(exp.TurnID, "hotspot %q missing (got %v)", tr, triggers)
			}
		}
		if exp.Points != nil && len(out.Points) != *exp.Points {
			fail(exp.TurnID, "points = %d, want %d", len(out.Points), *exp.Points)
		}
	}
	return mismatches
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// #endregion check
