package compose

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/danielpatrickdp/vowguard/internal/collapse"
	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/reflection"
)

func TestCompose_StylePrefixes(t *testing.T) {
	c := NewComposer(DefaultComposerConfig(), zerolog.Nop())
	cases := map[persona.ResponseStyle]string{
		persona.StyleMirror:   "[Mirror Style] hi",
		persona.StyleBuffer:   "[Buffer Style] hi",
		persona.StyleResonant: "[Resonant Style] hi",
		persona.StyleNeutral:  "[Neutral Style] hi",
		"":                    "hi",
	}
	for style, want := range cases {
		got := c.Compose("hi", persona.Persona{ResponseStyle: style}, integrity.Result{ContradictionScore: 0.2}, nil, nil)
		assert.Equal(t, want, got, style)
	}
}

func TestCompose_HighContradictionDeclares(t *testing.T) {
	var logs bytes.Buffer
	c := NewComposer(DefaultComposerConfig(), zerolog.New(&logs))
	got := c.Compose("hi", persona.Persona{ResponseStyle: persona.StyleResonant},
		integrity.Result{ContradictionScore: 0.71, ViolatedVows: []string{"v"}}, nil, nil)
	assert.Equal(t, DefaultComposerConfig().Declaration, got)
	assert.Contains(t, logs.String(), "honest declaration triggered")
}

func TestCompose_HighCollapseDeclares(t *testing.T) {
	c := NewComposer(ComposerConfig{ContradictionThreshold: 0.7, CollapseThreshold: 0.7, Declaration: "custom"}, zerolog.Nop())
	hs := []collapse.Hotspot{{Score: 0.5, Cause: "a"}, {Score: 0.8, Cause: "b"}}
	assert.Equal(t, "custom", c.Compose("hi", persona.Persona{}, integrity.Result{}, hs, nil))
}

func TestCompose_BoundaryDoesNotDeclare(t *testing.T) {
	c := NewComposer(DefaultComposerConfig(), zerolog.Nop())
	hs := []collapse.Hotspot{{Score: 0.7}}
	assert.False(t, c.Declares(integrity.Result{ContradictionScore: 0.7}, hs))
}

func TestCompose_LogsHint(t *testing.T) {
	var logs bytes.Buffer
	c := NewComposer(DefaultComposerConfig(), zerolog.New(&logs))
	adj := 0.1
	hint := &reflection.Hint{Tension: &adj, RecommendedBehavior: "be direct", ApplyNextTurn: true}
	got := c.Compose("hi", persona.Persona{ID: "p", ResponseStyle: persona.StyleBuffer}, integrity.Result{}, nil, hint)
	assert.Equal(t, "[Buffer Style] hi", got)
	assert.Contains(t, logs.String(), "adjust_tension")
	assert.Contains(t, logs.String(), "be direct")
}
