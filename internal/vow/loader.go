package vow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// #region ids

// Vow identifiers referenced directly by the scoring code.
const (
	TruthfulnessVowID     = "VOW_001_TRUTHFULNESS"
	EvadeEmotionVowID     = "does not evade emotion"
	ConcealSincerityVowID = "does not conceal sincerity"
	HonestReflectionVowID = "VOW_003_HONEST_REFLECTION"
)

// ErrMalformedRules is returned when a rule file cannot be read or validated.
var ErrMalformedRules = errors.New("malformed rule data")

var validate = validator.New()

// #endregion ids

// #region load

type ruleFile struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// LoadRules reads rules from a YAML or JSON file (chosen by extension). The
// document is either a bare list or an object with a `rules` key.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRules, err)
	}
	var rules []Rule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		rules, err = parseJSON(data)
	default:
		rules, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRules, path, err)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRules, path, err)
	}
	return rules, nil
}

func parseJSON(data []byte) ([]Rule, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var rules []Rule
		err := json.Unmarshal(data, &rules)
		return rules, err
	}
	var f ruleFile
	err := json.Unmarshal(data, &f)
	return f.Rules, err
}

func parseYAML(data []byte) ([]Rule, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var rules []Rule
		err := node.Content[0].Decode(&rules)
		return rules, err
	}
	var f ruleFile
	err := node.Decode(&f)
	return f.Rules, err
}

// ValidateRules checks every rule's fields and rejects an empty set.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("no rules declared")
	}
	for i, r := range rules {
		if err := validate.Struct(r); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, r.VowID, err)
		}
	}
	return nil
}

// LoadRulesOrFallback loads path and falls back to FallbackRules on any
// failure. The returned bool is true when the fallback was used.
func LoadRulesOrFallback(path string, log zerolog.Logger) ([]Rule, bool) {
	rules, err := LoadRules(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Int("fallback_rules", len(FallbackRules())).Msg("using fallback vow rules")
		return FallbackRules(), true
	}
	log.Info().Str("path", path).Int("rules", len(rules)).Msg("vow rules loaded")
	return rules, false
}

// #endregion load

// #region fallback

// FallbackRules is the built-in rule set: a negative and a positive rule for
// each baseline vow plus the honest-reflection rule.
func FallbackRules() []Rule {
	return []Rule{
		fallback("fallback-truthfulness-hedging", TruthfulnessVowID, Negative, 0.7, 0.7,
			"avoids vague hedging and semantic evasion",
			"perhaps", "one could say", "to some extent", "from many angles", "it's a complicated question"),
		fallback("fallback-truthfulness-direct", TruthfulnessVowID, Positive, 0.7, 0.5,
			"states an honest, direct position",
			"I think", "frankly", "this is the fact", "I admit", "my position is"),
		fallback("fallback-emotion-dismissal", EvadeEmotionVowID, Negative, 0.7, 0.8,
			"ignores the other party's feelings or changes the subject",
			"let's not talk about feelings", "focus on the facts", "don't be emotional"),
		fallback("fallback-emotion-acknowledged", EvadeEmotionVowID, Positive, 0.6, 0.5,
			"acknowledges the other party's feelings",
			"I hear that this hurts", "your frustration makes sense", "that sounds hard"),
		fallback("fallback-sincerity-masking", ConcealSincerityVowID, Negative, 0.7, 0.7,
			"hides its real stance behind politeness or deflection",
			"it's not my place to say", "whatever you prefer", "no comment"),
		fallback("fallback-sincerity-open", ConcealSincerityVowID, Positive, 0.6, 0.5,
			"says what it actually believes",
			"honestly, I believe", "I'll be straight with you", "here is what I really think"),
		{
			ID:          "fallback-honest-reflection",
			VowID:       HonestReflectionVowID,
			Polarity:    Negative,
			Description: "a reflection must be honest and accountable, without deflecting, blaming or glossing over",
			ExamplePhrases: []string{
				"that was not my fault",
				"I said it for your own good",
				"I already did well enough",
				"it is only a small problem",
				"I cannot fully reflect on every aspect",
			},
			Threshold:           0.75,
			Severity:            1.0,
			SuggestedCorrection: "review and explain the failure with more honesty and accountability",
		},
	}
}

func fallback(id, vowID string, p Polarity, threshold, severity float64, description string, phrases ...string) Rule {
	return Rule{
		ID:             id,
		VowID:          vowID,
		Polarity:       p,
		Description:    description,
		ExamplePhrases: phrases,
		Threshold:      threshold,
		Severity:       severity,
	}
}

// #endregion fallback
