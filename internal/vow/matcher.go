package vow

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/vowguard/internal/provider"
)

// #region config

// MatcherConfig tunes rule initialization.
type MatcherConfig struct {
	InitConcurrency int `mapstructure:"init_concurrency"` // parallel embedding calls during Initialize
}

// DefaultMatcherConfig returns sensible defaults.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{InitConcurrency: 4}
}

// #endregion config

// #region matcher

// Matcher scores texts against the loaded rule set by cosine similarity.
type Matcher struct {
	embedder provider.Embedder
	cache    *EmbeddingCache
	config   MatcherConfig
	log      zerolog.Logger

	mu    sync.RWMutex
	rules []Rule
	keys  map[string]int
}

// NewMatcher creates a matcher. cache may be shared between matchers; nil
// allocates a private one.
func NewMatcher(embedder provider.Embedder, cache *EmbeddingCache, config MatcherConfig, log zerolog.Logger) *Matcher {
	if cache == nil {
		cache = NewEmbeddingCache()
	}
	if config.InitConcurrency < 1 {
		config.InitConcurrency = 1
	}
	return &Matcher{
		embedder: embedder,
		cache:    cache,
		config:   config,
		log:      log.With().Str("component", "vow_matcher").Logger(),
		keys:     make(map[string]int),
	}
}

// #endregion matcher

// #region rules

// LoadRules adds rules (a rule with an existing key replaces the old one) and
// embeds every rule that has no cached vector yet.
func (m *Matcher) LoadRules(ctx context.Context, rules []Rule) error {
	m.mu.Lock()
	for _, r := range rules {
		key := r.Key()
		if i, ok := m.keys[key]; ok {
			m.rules[i] = r
			continue
		}
		m.keys[key] = len(m.rules)
		m.rules = append(m.rules, r)
	}
	m.mu.Unlock()
	return m.Initialize(ctx)
}

// Initialize computes the embedding of every rule lacking one. Vectors that
// were computed before a failure stay cached.
func (m *Matcher) Initialize(ctx context.Context) error {
	pending := m.pending()
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.InitConcurrency)
	for _, r := range pending {
		r := r
		g.Go(func() error {
			_, err := m.cache.Get(gctx, r.CacheKey(), func(ctx context.Context) ([]float32, error) {
				emb, err := m.embedder.Embed(ctx, r.EmbeddingText())
				if err != nil {
					return nil, provider.Fail("embed", err)
				}
				return emb, nil
			})
			if err != nil {
				return fmt.Errorf("embed rule %s (%s): %w", r.Key(), r.VowID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.log.Warn().Err(err).Int("pending", len(pending)).Msg("rule initialization incomplete")
		return err
	}
	m.log.Debug().Int("embedded", len(pending)).Int("cached", m.cache.Len()).Msg("rules initialized")
	return nil
}

// Rules returns a copy of the loaded rule set in load order.
func (m *Matcher) Rules() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Rule(nil), m.rules...)
}

// HasRules reports whether any rule targets vowID.
func (m *Matcher) HasRules(vowID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.VowID == vowID {
			return true
		}
	}
	return false
}

func (m *Matcher) pending() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Rule
	for _, r := range m.rules {
		if _, ok := m.cache.Lookup(r.CacheKey()); !ok {
			out = append(out, r)
		}
	}
	return out
}

// #endregion rules

// #region match

// MatchVows embeds text and evaluates it against the active vows.
func (m *Matcher) MatchVows(ctx context.Context, text string, activeVowIDs []string) ([]MatchResult, error) {
	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, provider.Fail("embed", err)
	}
	return m.MatchEmbedding(emb, activeVowIDs), nil
}

// MatchEmbedding evaluates a precomputed embedding. Rules for inactive vows and
// rules whose embedding is not cached yet are skipped.
func (m *Matcher) MatchEmbedding(emb []float32, activeVowIDs []string) []MatchResult {
	active := make(map[string]struct{}, len(activeVowIDs))
	for _, id := range activeVowIDs {
		active[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]MatchResult, 0, len(m.rules))
	for _, r := range m.rules {
		if _, ok := active[r.VowID]; !ok {
			continue
		}
		ruleEmb, ok := m.cache.Lookup(r.CacheKey())
		if !ok {
			continue
		}
		sim := CosineSimilarity(emb, ruleEmb)
		violated, raw := evaluate(r.Polarity, sim, r.Threshold)
		score := 0.0
		if violated {
			score = raw * r.Severity
		}
		results = append(results, MatchResult{
			VowID:       r.VowID,
			RuleKey:     r.Key(),
			Violated:    violated,
			Score:       score,
			Severity:    r.Severity,
			Similarity:  sim,
			Description: r.Description,
		})
	}
	return results
}

// evaluate returns whether the rule fires and its unweighted score in [0,1].
func evaluate(p Polarity, sim, threshold float64) (bool, float64) {
	switch p {
	case Negative:
		if sim <= threshold {
			return false, 0
		}
		if threshold >= 1 {
			return true, 1
		}
		return true, clamp01((sim - threshold) / (1 - threshold))
	case Positive:
		if sim >= threshold {
			return false, 0
		}
		if threshold <= 0 {
			return true, 1
		}
		return true, clamp01((threshold - sim) / threshold)
	}
	return false, 0
}

// #endregion match

// #region helpers

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for empty, mismatched or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
