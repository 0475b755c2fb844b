// Package fake provides deterministic provider doubles for tests and replay.
package fake

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// #region embedder

// KeywordRule maps any text containing Keyword to Vector.
type KeywordRule struct {
	Keyword string
	Vector  []float32
}

// Embedder returns fixed vectors. Lookup order: exact text, then keyword rules
// in order, then Default.
type Embedder struct {
	mu       sync.RWMutex
	exact    map[string][]float32
	keywords []KeywordRule
	Default  []float32
	Err      error
	Delay    time.Duration
	calls    atomic.Int64
}

// NewEmbedder creates an embedder whose fallback vector is def.
func NewEmbedder(def []float32) *Embedder {
	return &Embedder{exact: make(map[string][]float32), Default: def}
}

// Set registers an exact-text mapping.
func (e *Embedder) Set(text string, vec []float32) *Embedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exact[text] = vec
	return e
}

// OnKeyword registers a substring mapping, checked after exact matches.
func (e *Embedder) OnKeyword(keyword string, vec []float32) *Embedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keywords = append(e.keywords, KeywordRule{Keyword: keyword, Vector: vec})
	return e
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.Delay > 0 {
		t := time.NewTimer(e.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if e.Err != nil {
		return nil, e.Err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.exact[text]; ok {
		return clone(v), nil
	}
	for _, kr := range e.keywords {
		if strings.Contains(text, kr.Keyword) {
			return clone(kr.Vector), nil
		}
	}
	return clone(e.Default), nil
}

// Calls returns how many times Embed was invoked.
func (e *Embedder) Calls() int64 { return e.calls.Load() }

// #endregion embedder

// #region generator

// Generator returns Reply, or the result of Func when set.
type Generator struct {
	Reply string
	Func  func(prompt string) (string, error)
	Err   error

	mu      sync.Mutex
	prompts []string
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Err != nil {
		return "", g.Err
	}
	if g.Func != nil {
		return g.Func(prompt)
	}
	return g.Reply, nil
}

// Prompts returns every prompt received, in order.
func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// Calls returns how many times Generate was invoked.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// #endregion generator

func clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	return append([]float32(nil), v...)
}
