package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// #region config

// ResilienceConfig bounds every external call.
type ResilienceConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`      // per-attempt deadline
	MaxRetries int           `mapstructure:"max_retries"`  // retries after the first attempt
	RetryDelay time.Duration `mapstructure:"retry_delay"`  // wait between attempts
	RatePerSec float64       `mapstructure:"rate_per_sec"` // 0 disables rate limiting
	Burst      int           `mapstructure:"burst"`
}

// DefaultResilienceConfig returns sensible defaults: 30s per attempt, 2 retries.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 250 * time.Millisecond,
		RatePerSec: 0,
		Burst:      1,
	}
}

// #endregion config

// #region observer

// Observer is notified after every attempt. outcome is "ok" or "error".
type Observer func(op, outcome string, elapsed time.Duration)

// #endregion observer

// #region resilient

// Resilient wraps an Embedder and a Generator with timeouts, bounded retry and
// an optional rate limit. Exhausted attempts surface as provider failures.
type Resilient struct {
	embedder  Embedder
	generator Generator
	config    ResilienceConfig
	limiter   *rate.Limiter
	observe   Observer
	log       zerolog.Logger
}

// NewResilient creates a wrapper. Either collaborator may be nil if unused.
func NewResilient(embedder Embedder, generator Generator, config ResilienceConfig, log zerolog.Logger) *Resilient {
	r := &Resilient{
		embedder:  embedder,
		generator: generator,
		config:    config,
		log:       log.With().Str("component", "provider").Logger(),
	}
	if config.RatePerSec > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(config.RatePerSec), burst)
	}
	return r
}

// WithObserver attaches a per-attempt callback.
func (r *Resilient) WithObserver(o Observer) *Resilient {
	r.observe = o
	return r
}

// Embed calls the wrapped embedder under the resilience policy.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	if r.embedder == nil {
		return nil, Fail("embed", errors.New("no embedder configured"))
	}
	var out []float32
	err := r.do(ctx, "embed", func(ctx context.Context) error {
		emb, err := r.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		if len(emb) == 0 {
			return errors.New("empty embedding")
		}
		out = emb
		return nil
	})
	return out, err
}

// Generate calls the wrapped generator under the resilience policy.
func (r *Resilient) Generate(ctx context.Context, prompt string) (string, error) {
	if r.generator == nil {
		return "", Fail("generate", errors.New("no generator configured"))
	}
	var out string
	err := r.do(ctx, "generate", func(ctx context.Context) error {
		text, err := r.generator.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// #endregion resilient

// #region attempt-loop

func (r *Resilient) do(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.config.RetryDelay); err != nil {
				return Fail(op, err)
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return Fail(op, err)
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		start := time.Now()
		err := call(attemptCtx)
		cancel()
		elapsed := time.Since(start)

		if err == nil {
			r.notify(op, "ok", elapsed)
			return nil
		}
		r.notify(op, "error", elapsed)
		lastErr = err
		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("elapsed", elapsed).Msg("provider call failed")

		// The caller gave up; retrying cannot help.
		if ctx.Err() != nil {
			return Fail(op, ctx.Err())
		}
	}
	return Fail(op, lastErr)
}

func (r *Resilient) notify(op, outcome string, elapsed time.Duration) {
	if r.observe != nil {
		r.observe(op, outcome, elapsed)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion attempt-loop
