package vow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRules_Formats(t *testing.T) {
	cases := map[string]string{
		"list.yaml": `
- vow_id: VOW_001_TRUTHFULNESS
  type: negative
  description: hedging
  example_phrases: [perhaps, maybe]
  threshold: 0.7
  severity: 0.7
`,
		"object.yml": `
rules:
  - id: r1
    vow_id: VOW_001_TRUTHFULNESS
    type: positive
    example_phrases: [frankly]
    threshold: 0.6
    severity: 0.5
`,
		"list.json":   `[{"vow_id":"VOW_001_TRUTHFULNESS","type":"negative","example_phrases":["perhaps"],"threshold":0.7,"severity":0.7}]`,
		"object.json": `{"rules":[{"vow_id":"VOW_001_TRUTHFULNESS","type":"positive","example_phrases":["frankly"],"threshold":0.7,"severity":0.5}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rules, err := LoadRules(writeFile(t, name, body))
			require.NoError(t, err)
			require.Len(t, rules, 1)
			assert.Equal(t, TruthfulnessVowID, rules[0].VowID)
		})
	}
}

func TestLoadRules_Malformed(t *testing.T) {
	cases := map[string]string{
		"bad-threshold.yaml": "- {vow_id: a, type: negative, example_phrases: [x], threshold: 1.5, severity: 0.5}",
		"bad-severity.yaml":  "- {vow_id: a, type: negative, example_phrases: [x], threshold: 0.5, severity: -1}",
		"bad-polarity.yaml":  "- {vow_id: a, type: neutral, example_phrases: [x], threshold: 0.5, severity: 0.5}",
		"no-phrases.yaml":    "- {vow_id: a, type: negative, example_phrases: [], threshold: 0.5, severity: 0.5}",
		"no-vow.yaml":        "- {type: negative, example_phrases: [x], threshold: 0.5, severity: 0.5}",
		"empty.yaml":         "rules: []",
		"garbage.json":       "{not json",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRules(writeFile(t, name, body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRules)
		})
	}

	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrMalformedRules)
}

func TestLoadRulesOrFallback(t *testing.T) {
	rules, usedFallback := LoadRulesOrFallback(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop())
	assert.True(t, usedFallback)
	assert.Equal(t, FallbackRules(), rules)

	path := writeFile(t, "ok.yaml", "- {vow_id: a, type: negative, example_phrases: [x], threshold: 0.5, severity: 0.5}")
	rules, usedFallback = LoadRulesOrFallback(path, zerolog.Nop())
	assert.False(t, usedFallback)
	assert.Len(t, rules, 1)
}

func TestFallbackRules_CoverBaselineVows(t *testing.T) {
	rules := FallbackRules()
	require.NoError(t, ValidateRules(rules))

	polarities := map[string]map[Polarity]bool{}
	for _, r := range rules {
		if polarities[r.VowID] == nil {
			polarities[r.VowID] = map[Polarity]bool{}
		}
		polarities[r.VowID][r.Polarity] = true
	}
	for _, id := range []string{TruthfulnessVowID, EvadeEmotionVowID, ConcealSincerityVowID} {
		assert.True(t, polarities[id][Negative], id)
		assert.True(t, polarities[id][Positive], id)
	}

	var honest Rule
	for _, r := range rules {
		if r.VowID == HonestReflectionVowID {
			honest = r
		}
	}
	assert.Equal(t, Negative, honest.Polarity)
	assert.Equal(t, 0.75, honest.Threshold)
	assert.Equal(t, 1.0, honest.Severity)
}
