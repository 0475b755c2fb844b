package persona

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// #region registry
// Registry is a read-mostly lookup of personas keyed by ID.
// It starts empty; every entry comes from configuration.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]Persona
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{personas: make(map[string]Persona)}
}

// Get returns a copy of the persona with the given ID.
func (r *Registry) Get(id string) (Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	if !ok {
		return Persona{}, false
	}
	return clonePersona(p), true
}

// List returns all personas sorted by ID.
func (r *Registry) List() []Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, clonePersona(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add validates and stores a persona, replacing any with the same ID.
func (r *Registry) Add(p Persona) error {
	if err := Validate(p); err != nil {
		return err
	}
	if p.ResponseStyle == "" {
		p.ResponseStyle = StyleNeutral
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas[p.ID] = clonePersona(p)
	return nil
}

// Len returns the number of registered personas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}

// #endregion registry

// #region validate
// Validate checks struct tags plus the tone signature.
func Validate(p Persona) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("persona %q: %w", p.ID, err)
	}
	if err := p.Signature.Validate(); err != nil {
		return fmt.Errorf("persona %q signature: %w", p.ID, err)
	}
	return nil
}

// #endregion validate

// #region load
type registryFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadRegistry reads a YAML file of the form `personas: [...]`.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from YAML bytes. Duplicate IDs are rejected.
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	if len(f.Personas) == 0 {
		return nil, errors.New("parse personas: no personas declared")
	}
	reg := NewRegistry()
	for _, p := range f.Personas {
		if _, dup := reg.Get(p.ID); dup {
			return nil, fmt.Errorf("parse personas: duplicate id %q", p.ID)
		}
		if err := reg.Add(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// #endregion load

// #region helpers
func clonePersona(p Persona) Persona {
	p.Vows = append([]string(nil), p.Vows...)
	p.CollapseConditions = append([]CollapseCondition(nil), p.CollapseConditions...)
	return p
}

// #endregion helpers
