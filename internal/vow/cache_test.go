package vow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestEmbeddingCache_ConcurrentMissesComputeOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewEmbeddingCache()
	var computed atomic.Int32
	compute := func(context.Context) ([]float32, error) {
		computed.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []float32{0.5, 0.5}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "rule-a", compute)
			assert.NoError(t, err)
			assert.Equal(t, []float32{0.5, 0.5}, v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), computed.Load())
	assert.Equal(t, 1, c.Len())
}

func TestEmbeddingCache_FailureNotCached(t *testing.T) {
	c := NewEmbeddingCache()
	_, err := c.Get(context.Background(), "k", func(context.Context) ([]float32, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	_, ok := c.Lookup("k")
	assert.False(t, ok)

	v, err := c.Get(context.Background(), "k", func(context.Context) ([]float32, error) {
		return []float32{1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
}

func TestEmbeddingCache_HitSkipsCompute(t *testing.T) {
	c := NewEmbeddingCache()
	_, err := c.Get(context.Background(), "k", func(context.Context) ([]float32, error) { return []float32{2}, nil })
	require.NoError(t, err)

	v, err := c.Get(context.Background(), "k", func(context.Context) ([]float32, error) {
		t.Fatal("compute called on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, v)
}
