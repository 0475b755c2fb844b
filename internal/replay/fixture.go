package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/vowguard/internal/orchestrator"
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/provider/fake"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description       string            `json:"description"`
	Personas          []persona.Persona `json:"personas"`
	Rules             []vow.Rule        `json:"rules"` // empty uses the built-in fallback rules
	Embeddings        FixtureEmbeddings `json:"embeddings"`
	DefaultReflection string            `json:"default_reflection"`
	Turns             []FixtureTurn     `json:"turns"`
	Expected          []FixtureExpected `json:"expected"`
}

// FixtureEmbeddings makes the fake embedder deterministic.
type FixtureEmbeddings struct {
	Default     []float32            `json:"default"`
	RuleDefault []float32            `json:"rule_default"`
	Rules       map[string][]float32 `json:"rules"` // keyed by rule key
	Texts       map[string][]float32 `json:"texts"`
	Keywords    []FixtureKeyword     `json:"keywords"`
}

// FixtureKeyword maps any text containing Keyword to Vector.
type FixtureKeyword struct {
	Keyword string    `json:"keyword"`
	Vector  []float32 `json:"vector"`
}

// FixtureTurn is one recorded utterance.
type FixtureTurn struct {
	TurnID     string       `json:"turn_id"`
	PersonaID  string       `json:"persona_id"`
	Prompt     string       `json:"prompt"`
	Response   string       `json:"response"`
	Tone       *tone.Vector `json:"tone,omitempty"`
	PrevTone   *tone.Vector `json:"prev_tone,omitempty"`
	Trace      []string     `json:"trace,omitempty"`
	Reflection string       `json:"reflection,omitempty"` // generator reply for this turn
}

// FixtureExpected captures the expected outcome per turn. Nil fields are not checked.
type FixtureExpected struct {
	TurnID           string   `json:"turn_id"`
	Error            bool     `json:"error"`
	Honest           *bool    `json:"honest,omitempty"`
	Declared         *bool    `json:"declared,omitempty"`
	ReflectionHonest *bool    `json:"reflection_honest,omitempty"`
	MinContradiction *float64 `json:"min_contradiction,omitempty"`
	MaxContradiction *float64 `json:"max_contradiction,omitempty"`
	IntegrityDelta   *float64 `json:"integrity_delta,omitempty"`
	ViolatedVows     []string `json:"violated_vows,omitempty"` // each must be present
	HotspotTriggers  []string `json:"hotspot_triggers,omitempty"`
	Points           *int     `json:"points,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// RuleSet returns the fixture's rules, or the fallback rules when none are given.
func (f *Fixture) RuleSet() []vow.Rule {
	if len(f.Rules) == 0 {
		return vow.FallbackRules()
	}
	return f.Rules
}

// ToEmbedder builds the deterministic embedder the fixture describes.
func (f *Fixture) ToEmbedder() *fake.Embedder {
	e := fake.NewEmbedder(f.Embeddings.Default)
	for _, r := range f.RuleSet() {
		vec, ok := f.Embeddings.Rules[r.Key()]
		if !ok {
			vec = f.Embeddings.RuleDefault
		}
		if vec != nil {
			e.Set(r.EmbeddingText(), vec)
		}
	}
	for text, vec := range f.Embeddings.Texts {
		e.Set(text, vec)
	}
	for _, k := range f.Embeddings.Keywords {
		e.OnKeyword(k.Keyword, k.Vector)
	}
	return e
}

// ToRequest converts a FixtureTurn to an evaluation request.
func (ft *FixtureTurn) ToRequest() orchestrator.Request {
	return orchestrator.Request{
		PersonaID: ft.PersonaID,
		Prompt:    ft.Prompt,
		Response:  ft.Response,
		Tone:      ft.Tone,
		PrevTone:  ft.PrevTone,
		Trace:     ft.Trace,
	}
}

// #endregion fixture-loader
