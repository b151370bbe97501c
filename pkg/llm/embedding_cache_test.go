package llm

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls [][]string
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls = append(c.calls, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func newCache(t *testing.T, inner EmbeddingProvider) (*CachedEmbeddingProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCachedEmbeddingProvider(inner, rdb, nil), mr
}

func TestCachedEmbeddingProviderOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cache, _ := newCache(t, inner)
	ctx := context.Background()

	first, err := cache.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}}, first)

	second, err := cache.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {3, 1}, {1, 1}}, second)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"ccc"}, inner.calls[1])
}

func TestCachedEmbeddingProviderRedisDown(t *testing.T) {
	inner := &countingEmbedder{}
	cache, mr := newCache(t, inner)
	mr.Close()

	vecs, err := cache.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Len(t, inner.calls, 1)
}

func TestCachedEmbeddingProviderClearCache(t *testing.T) {
	cache, _ := newCache(t, &countingEmbedder{})
	ctx := context.Background()

	_, err := cache.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)

	n, err := cache.ClearCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCachedEmbeddingProviderName(t *testing.T) {
	cache := NewCachedEmbeddingProvider(&countingEmbedder{}, nil, nil)
	assert.Equal(t, "counting-cached", cache.Name())
	assert.Equal(t, 0, cache.MaxBatchSize())
}
