package provider

import (
	"context"
	"errors"
	"fmt"
)

// #region interfaces

// Embedder turns text into a semantic vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces natural-language text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// #endregion interfaces

// #region errors

// ErrProviderFailure marks an embedding or generation call that failed.
// It aborts the enclosing evaluation; no partial result is produced.
var ErrProviderFailure = errors.New("provider failure")

// Failure wraps a provider error with the operation that produced it.
type Failure struct {
	Op  string // "embed" | "generate"
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrProviderFailure, f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches ErrProviderFailure so callers can test the category.
func (f *Failure) Is(target error) bool { return target == ErrProviderFailure }

// Fail wraps err as a provider failure unless it already is one.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return &Failure{Op: op, Err: err}
}

// #endregion errors
