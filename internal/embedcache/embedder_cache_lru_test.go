package embedcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mu         sync.Mutex
	embedCalls int
	manyCalls  int
	manyTexts  [][]string
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embedCalls++
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manyCalls++
	c.manyTexts = append(c.manyTexts, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string { return "counting" }

func TestLRUEmbedder_CachesRepeatedText(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLRUCacheToEmbedder(inner, 10, time.Minute)

	first, err := cached.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.embedCalls)
}

func TestLRUEmbedder_TaskTypeSeparatesEntries(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLRUCacheToEmbedder(inner, 10, time.Minute)

	_, err := cached.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, inner.embedCalls)
}

func TestLRUEmbedder_EmbedManyPartialHit(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLRUCacheToEmbedder(inner, 10, time.Minute)

	_, err := cached.Embed(context.Background(), "warm", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)

	out, err := cached.EmbedMany(context.Background(), []string{"warm", "cold"}, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, []float32{4, 1}, out[0])
	require.Equal(t, 1, inner.manyCalls)
	require.Equal(t, []string{"cold"}, inner.manyTexts[0])
}

func TestWrapLRUCacheToEmbedder_DisabledPassthrough(t *testing.T) {
	inner := &countingEmbedder{}
	require.Equal(t, inner, WrapLRUCacheToEmbedder(inner, 0, time.Minute))
	require.Nil(t, WrapLRUCacheToEmbedder(nil, 10, time.Minute))
}
