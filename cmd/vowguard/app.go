package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/vowguard/internal/codec"
	"github.com/danielpatrickdp/vowguard/internal/collapse"
	"github.com/danielpatrickdp/vowguard/internal/compose"
	"github.com/danielpatrickdp/vowguard/internal/config"
	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/metrics"
	"github.com/danielpatrickdp/vowguard/internal/orchestrator"
	"github.com/danielpatrickdp/vowguard/internal/persona"
	"github.com/danielpatrickdp/vowguard/internal/provider"
	"github.com/danielpatrickdp/vowguard/internal/reflection"
	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/violation"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region app

// app holds every long-lived component of a running pipeline.
type app struct {
	store    *violation.Store
	personas *persona.Registry
	registry *prometheus.Registry
	orch     *orchestrator.Orchestrator
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// #endregion app

// #region backends

type backend interface {
	provider.Embedder
	provider.Generator
}

func newBackend(cfg config.ProviderConfig, log zerolog.Logger) (backend, func() error, error) {
	switch cfg.Kind {
	case config.ProviderGRPC:
		c, err := codec.NewCodecClient(cfg.GRPCAddr)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		o, err := provider.NewOpenAI(cfg.OpenAI, log)
		if err != nil {
			return nil, nil, err
		}
		return o, func() error { return nil }, nil
	}
}

// #endregion backends

// #region build

// buildApp wires the full evaluation pipeline from cfg. Rule embeddings are
// computed before it returns.
func buildApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, err := violation.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	a.personas, err = persona.LoadRegistry(cfg.Data.PersonasPath)
	if err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	raw, closeBackend, err := newBackend(cfg.Provider, log)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	a.closers = append(a.closers, closeBackend)
	resilient := provider.NewResilient(raw, raw, cfg.Provider.Resilience, log).WithObserver(m.ObserveProvider)

	rules, usedFallback := vow.LoadRulesOrFallback(cfg.Data.RulesPath, log)
	matcher := vow.NewMatcher(resilient, vow.NewEmbeddingCache(), cfg.Matcher, log)
	if err := matcher.LoadRules(ctx, rules); err != nil {
		return nil, fmt.Errorf("initialize rules: %w", err)
	}
	log.Info().Int("rules", len(rules)).Bool("fallback", usedFallback).Int("personas", a.personas.Len()).Msg("rules ready")

	predictor := collapse.NewPredictor(collapse.NewRegistry())
	for _, p := range a.personas.List() {
		if unmapped := predictor.Unmapped(p); len(unmapped) > 0 {
			log.Warn().Str("persona", p.ID).Strs("triggers", unmapped).Msg("collapse triggers have no tone dimension and will be skipped")
		}
	}

	calc := tone.NewCalculus(cfg.SincerityTable())
	tuner, err := reflection.NewTuner(resilient, matcher, calc, cfg.Tuner, log)
	if err != nil {
		return nil, err
	}
	reflections, err := reflection.NewStore(store.DB())
	if err != nil {
		return nil, err
	}
	memory, err := orchestrator.NewToneMemory(store.DB())
	if err != nil {
		return nil, err
	}

	a.orch, err = orchestrator.NewOrchestrator(orchestrator.Deps{
		Personas:    a.personas,
		Embedder:    resilient,
		Matcher:     matcher,
		Scorer:      integrity.NewScorer(matcher, calc, cfg.Scorer),
		Predictor:   predictor,
		Tuner:       tuner,
		Composer:    compose.NewComposer(cfg.Composer, log),
		Ledger:      violation.NewMap(),
		Calculus:    calc,
		Store:       store,
		Reflections: reflections,
		Provenance:  store.DB(),
		Memory:      memory,
		Metrics:     m,
	}, log)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// #endregion build
