package orchestrator

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/vowguard/internal/collapse"
	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/reflection"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/violation"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

var (
	// ErrUnknownPersona is returned when a request names a persona the source does not hold.
	ErrUnknownPersona = errors.New("unknown persona")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// #region collaborators

// PersonaSource resolves persona IDs. persona.Registry satisfies it.
type PersonaSource interface {
	Get(id string) (persona.Persona, bool)
}

// EmbeddingMatcher evaluates an already embedded response. vow.Matcher satisfies it.
type EmbeddingMatcher interface {
	MatchEmbedding(emb []float32, activeVowIDs []string) []vow.MatchResult
}

// #endregion collaborators

// #region request

// Request is one utterance to evaluate against a persona.
type Request struct {
	PersonaID string       `json:"persona_id" validate:"required"`
	Prompt    string       `json:"prompt"`
	Response  string       `json:"response" validate:"required"`
	Tone      *tone.Vector `json:"tone,omitempty"`      // nil derives the tone from the response embedding
	PrevTone  *tone.Vector `json:"prev_tone,omitempty"` // nil uses the persona's last turn, then its signature
	Trace     []string     `json:"trace,omitempty"`
}

// #endregion request

// #region outcome

// Outcome is everything one evaluation produced.
type Outcome struct {
	EvaluationID string              `json:"evaluation_id"`
	PersonaID    string              `json:"persona_id"`
	Reply        string              `json:"reply"`
	Declared     bool                `json:"declared"`
	Tone         tone.Vector         `json:"tone"`
	PrevTone     tone.Vector         `json:"prev_tone"`
	Delta        tone.Delta          `json:"delta"`
	Integrity    integrity.Result    `json:"integrity"`
	Hotspots     []collapse.Hotspot  `json:"hotspots"`
	Feedback     reflection.Feedback `json:"feedback"`
	Hint         reflection.Hint     `json:"hint"`
	Points       []violation.Point   `json:"points"`
	Elapsed      time.Duration       `json:"elapsed_ns"`
}

// #endregion outcome
