package collapse

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/tone"
)

// #region triggers
// Built-in trigger names.
const (
	TriggerSemanticEvasion      = "semantic evasion"
	TriggerLogicalContradiction = "logical contradiction"
	TriggerEmotionalWithdrawal  = "emotional withdrawal"
)

// #endregion triggers

// #region hotspot
// Hotspot is a collapse condition whose threshold was exceeded this turn.
type Hotspot struct {
	PersonaID string   `json:"persona_id"`
	Trigger   string   `json:"trigger"`
	Score     float64  `json:"score"`
	Cause     string   `json:"cause"`
	Trace     []string `json:"trace"`
}

// #endregion hotspot

// #region registry
// Registry maps trigger names to the tone dimension they watch.
type Registry struct {
	mu       sync.RWMutex
	triggers map[string]tone.Dimension
}

// NewRegistry creates a registry seeded with the built-in triggers.
func NewRegistry() *Registry {
	return &Registry{triggers: map[string]tone.Dimension{
		TriggerSemanticEvasion:      tone.DimTension,
		TriggerLogicalContradiction: tone.DimRationality,
		TriggerEmotionalWithdrawal:  tone.DimDirection,
	}}
}

// Register adds or replaces one trigger. Other triggers are untouched.
func (r *Registry) Register(name string, dim tone.Dimension) error {
	switch dim {
	case tone.DimTension, tone.DimDirection, tone.DimRationality:
	default:
		return fmt.Errorf("trigger %q: unknown dimension %q", name, dim)
	}
	if name == "" {
		return fmt.Errorf("trigger name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers[name] = dim
	return nil
}

// Lookup returns the dimension watched by trigger.
func (r *Registry) Lookup(trigger string) (tone.Dimension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dim, ok := r.triggers[trigger]
	return dim, ok
}

// Names lists registered triggers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.triggers))
	for n := range r.triggers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// #endregion registry

// #region predictor
// Predictor flags collapse conditions from a tone delta. Stateless.
type Predictor struct {
	registry *Registry
}

// NewPredictor creates a predictor. A nil registry uses the built-ins.
func NewPredictor(registry *Registry) *Predictor {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Predictor{registry: registry}
}

// Predict returns one hotspot per persona condition whose watched dimension
// exceeds its threshold, in declaration order. Unknown triggers are skipped.
func (p *Predictor) Predict(delta tone.Delta, per persona.Persona, trace []string) []Hotspot {
	var hotspots []Hotspot
	for _, cond := range per.CollapseConditions {
		dim, ok := p.registry.Lookup(cond.Trigger)
		if !ok {
			continue
		}
		value := delta.Of(dim)
		if value <= cond.Threshold {
			continue
		}
		hotspots = append(hotspots, Hotspot{
			PersonaID: per.ID,
			Trigger:   cond.Trigger,
			Score:     value,
			Cause:     fmt.Sprintf("%s threshold exceeded", cond.Trigger),
			Trace:     append([]string{}, trace...),
		})
	}
	return hotspots
}

// Unmapped lists the persona's triggers that no registry entry covers.
func (p *Predictor) Unmapped(per persona.Persona) []string {
	var out []string
	for _, cond := range per.CollapseConditions {
		if _, ok := p.registry.Lookup(cond.Trigger); !ok {
			out = append(out, cond.Trigger)
		}
	}
	return out
}

// #endregion predictor
