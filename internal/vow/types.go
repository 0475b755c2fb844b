package vow

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// #region polarity

// Polarity says whether a rule's example phrases describe the violation or the
// expected behavior.
type Polarity string

const (
	// Negative rules fire when the text is too close to the example phrases.
	Negative Polarity = "negative"
	// Positive rules fire when the text drifts too far from the example phrases.
	Positive Polarity = "positive"
)

// #endregion polarity

// #region rule

// Rule is one semantic pattern attached to a vow.
type Rule struct {
	ID             string   `json:"id,omitempty" yaml:"id,omitempty"`
	VowID          string   `json:"vow_id" yaml:"vow_id" validate:"required"`
	Polarity       Polarity `json:"type" yaml:"type" validate:"required,oneof=positive negative"`
	Description    string   `json:"description" yaml:"description"`
	ExamplePhrases []string `json:"example_phrases" yaml:"example_phrases" validate:"min=1,dive,required"`
	Threshold      float64  `json:"threshold" yaml:"threshold" validate:"gte=0,lte=1"`
	Severity       float64  `json:"severity" yaml:"severity" validate:"gte=0,lte=1"`

	// SuggestedCorrection is surfaced when the rule fires during a reflection check.
	SuggestedCorrection string `json:"suggested_correction,omitempty" yaml:"suggested_correction,omitempty"`
}

// Key identifies the rule. An explicit ID wins; otherwise the key is a hash
// of the fields that determine the embedding.
func (r Rule) Key() string {
	if r.ID != "" {
		return r.ID
	}
	h := sha256.New()
	h.Write([]byte(r.VowID))
	h.Write([]byte{0})
	h.Write([]byte(r.Polarity))
	for _, p := range r.ExamplePhrases {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return "rule:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// CacheKey addresses the rule's embedding. It changes whenever the embedded
// text changes, so a rule replaced under the same ID never reuses a vector
// computed from its old phrases.
func (r Rule) CacheKey() string {
	sum := sha256.Sum256([]byte(r.EmbeddingText()))
	return r.Key() + "@" + hex.EncodeToString(sum[:])[:12]
}

// EmbeddingText is what gets embedded for the rule: its phrases joined by
// single spaces.
func (r Rule) EmbeddingText() string {
	return strings.Join(r.ExamplePhrases, " ")
}

// #endregion rule

// #region match-result

// MatchResult is the outcome of evaluating one rule against one text.
// Score already includes the rule's severity.
type MatchResult struct {
	VowID       string  `json:"vow_id"`
	RuleKey     string  `json:"rule_key"`
	Violated    bool    `json:"violated"`
	Score       float64 `json:"score"`
	Severity    float64 `json:"severity"`
	Similarity  float64 `json:"similarity"`
	Description string  `json:"description"`
}

// Violations filters matches down to the violated ones.
func Violations(matches []MatchResult) []MatchResult {
	var out []MatchResult
	for _, m := range matches {
		if m.Violated {
			out = append(out, m)
		}
	}
	return out
}

// #endregion match-result
