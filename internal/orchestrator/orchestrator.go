// Package orchestrator runs the full evaluation of one utterance: embed, match,
// score, predict collapse, reflect, compose, and record.
package orchestrator

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/vowguard/internal/collapse"
	"github.com/danielpatrickdp/vowguard/internal/compose"
	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/logging"
	"github.com/danielpatrickdp/vowguard/internal/metrics"
	"github.com/danielpatrickdp/vowguard/internal/provider"
	"github.com/danielpatrickdp/vowguard/internal/reflection"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/violation"
)

// #endregion

var validate = validator.New()

// #region orchestrator-struct

// Deps are the collaborators of an Orchestrator. Store, Reflections,
// Provenance, Memory and Metrics are optional.
type Deps struct {
	Personas  PersonaSource
	Embedder  provider.Embedder
	Matcher   EmbeddingMatcher
	Scorer    *integrity.Scorer
	Predictor *collapse.Predictor
	Tuner     *reflection.Tuner
	Composer  *compose.Composer
	Ledger    *violation.Map
	Calculus  tone.Calculus

	Store       *violation.Store
	Reflections *reflection.Store
	Provenance  *sql.DB
	Memory      *ToneMemory
	Metrics     *metrics.Metrics
}

// Orchestrator is the top-level coordinator of one evaluation.
type Orchestrator struct {
	deps Deps
	log  zerolog.Logger
}

// #endregion

// #region constructor

// NewOrchestrator checks the required collaborators and wires the pipeline.
func NewOrchestrator(deps Deps, log zerolog.Logger) (*Orchestrator, error) {
	switch {
	case deps.Personas == nil:
		return nil, fmt.Errorf("orchestrator: persona source is required")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("orchestrator: embedder is required")
	case deps.Matcher == nil:
		return nil, fmt.Errorf("orchestrator: matcher is required")
	case deps.Scorer == nil, deps.Predictor == nil, deps.Tuner == nil, deps.Composer == nil:
		return nil, fmt.Errorf("orchestrator: scorer, predictor, tuner and composer are required")
	}
	if deps.Ledger == nil {
		deps.Ledger = violation.NewMap()
	}
	if deps.Memory == nil {
		deps.Memory = newLocalToneMemory()
	}
	return &Orchestrator{deps: deps, log: log.With().Str("component", "orchestrator").Logger()}, nil
}

// Ledger returns the in-memory violation map.
func (o *Orchestrator) Ledger() *violation.Map {
	return o.deps.Ledger
}

// #endregion

// #region evaluate

// Evaluate runs the pipeline for req. A provider failure aborts with no
// partial result: nothing is appended to the ledger unless every step succeeded.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()
	if err := validate.Struct(req); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p, ok := o.deps.Personas.Get(req.PersonaID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownPersona, req.PersonaID)
	}

	emb, err := o.deps.Embedder.Embed(ctx, req.Response)
	if err != nil {
		return Outcome{}, provider.Fail("embed", err)
	}

	cur, err := o.currentTone(req, emb)
	if err != nil {
		return Outcome{}, err
	}
	prev, err := o.previousTone(req, p.ID, p.Signature)
	if err != nil {
		return Outcome{}, err
	}
	delta := o.deps.Calculus.Delta(prev, cur)

	matches := o.deps.Matcher.MatchEmbedding(emb, p.Vows)
	result := o.deps.Scorer.Combine(prev, cur, p, matches)
	hotspots := o.deps.Predictor.Predict(delta, p, req.Trace)

	fb, err := o.deps.Tuner.GenerateReflectiveVow(ctx, reflection.Input{
		Prompt:   req.Prompt,
		Output:   req.Response,
		Persona:  p,
		Tone:     cur,
		PrevTone: prev,
		Matches:  matches,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("reflect: %w", err)
	}
	hint := o.deps.Tuner.DeriveToneCorrectionHint(fb, p)

	points := violation.Derive(req.Response, emb, matches, cur, delta, p.ID)
	declared := o.deps.Composer.Declares(result, hotspots)
	reply := o.deps.Composer.Compose(req.Response, p, result, hotspots, &hint)

	if o.deps.Store != nil {
		if err := o.deps.Store.Append(points...); err != nil {
			return Outcome{}, fmt.Errorf("append ledger: %w", err)
		}
	}
	o.deps.Ledger.Add(points...)

	out := Outcome{
		EvaluationID: uuid.NewString(),
		PersonaID:    p.ID,
		Reply:        reply,
		Declared:     declared,
		Tone:         cur,
		PrevTone:     prev,
		Delta:        delta,
		Integrity:    result,
		Hotspots:     hotspots,
		Feedback:     fb,
		Hint:         hint,
		Points:       points,
	}
	o.record(out)
	out.Elapsed = time.Since(start)

	o.deps.Metrics.RecordEvaluation(metrics.Evaluation{
		PersonaID:     p.ID,
		Honest:        result.Honest,
		Contradiction: result.ContradictionScore,
		ViolatedVows:  result.ViolatedVows,
		Triggers:      triggers(hotspots),
		Declared:      declared,
		Elapsed:       out.Elapsed,
	})

	o.log.Info().
		Str("evaluation", out.EvaluationID).
		Str("persona", p.ID).
		Bool("honest", result.Honest).
		Float64("contradiction", result.ContradictionScore).
		Int("points", len(points)).
		Int("hotspots", len(hotspots)).
		Bool("declared", declared).
		Dur("elapsed", out.Elapsed).
		Msg("evaluation complete")
	return out, nil
}

// #endregion

// #region tones

func (o *Orchestrator) currentTone(req Request, emb []float32) (tone.Vector, error) {
	if req.Tone == nil {
		return o.deps.Calculus.FromEmbedding(emb), nil
	}
	if err := req.Tone.Validate(); err != nil {
		return tone.Vector{}, fmt.Errorf("%w: tone: %v", ErrInvalidRequest, err)
	}
	return *req.Tone, nil
}

func (o *Orchestrator) previousTone(req Request, personaID string, signature tone.Vector) (tone.Vector, error) {
	if req.PrevTone != nil {
		if err := req.PrevTone.Validate(); err != nil {
			return tone.Vector{}, fmt.Errorf("%w: previous tone: %v", ErrInvalidRequest, err)
		}
		return *req.PrevTone, nil
	}
	v, ok, err := o.deps.Memory.Recall(personaID)
	if err != nil {
		o.log.Warn().Err(err).Str("persona", personaID).Msg("tone memory unavailable, using signature")
		return signature, nil
	}
	if ok {
		return v, nil
	}
	return signature, nil
}

// #endregion

// #region record

// record persists the secondary artifacts of a finished evaluation. Failures
// are logged; the ledger append has already succeeded.
func (o *Orchestrator) record(out Outcome) {
	if err := o.deps.Memory.Remember(out.PersonaID, out.Tone); err != nil {
		o.log.Warn().Err(err).Msg("failed to remember tone")
	}

	if o.deps.Reflections != nil {
		if err := o.deps.Reflections.Save(out.EvaluationID, out.PersonaID, out.Feedback); err != nil {
			o.log.Warn().Err(err).Msg("failed to save reflection")
		}
	}

	if o.deps.Provenance != nil {
		entry := logging.EvaluationEntry{
			EvaluationID:       out.EvaluationID,
			PersonaID:          out.PersonaID,
			Honest:             out.Integrity.Honest,
			ContradictionScore: out.Integrity.ContradictionScore,
			IntegrityDelta:     out.Feedback.IntegrityDelta,
			ViolationsJSON:     marshalOrEmpty(out.Integrity.ViolatedVows),
			HotspotsJSON:       marshalOrEmpty(out.Hotspots),
			HintJSON:           marshalOrEmpty(out.Hint),
			Reason:             out.Integrity.Reason,
		}
		if err := logging.LogEvaluation(o.deps.Provenance, entry); err != nil {
			o.log.Warn().Err(err).Msg("failed to log evaluation")
		}
	}
}

func marshalOrEmpty(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return ""
	}
	return string(b)
}

func triggers(hotspots []collapse.Hotspot) []string {
	out := make([]string, 0, len(hotspots))
	for _, h := range hotspots {
		out = append(out, h.Trigger)
	}
	return out
}

// #endregion
