package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/xxxsen/docqna/internal/ai"
)

// WrapLRUCacheToEmbedder memoizes embeddings in-process so repeated
// questions and re-uploaded chunks skip provider calls within the TTL.
func WrapLRUCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 {
		return e
	}
	cache := expirable.NewLRU[string, []float32](size, nil, ttl)
	return &lruEmbedder{next: e, cache: cache}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := buildCacheKey(l.next.ModelName(), taskType, text)
	if values, ok := l.cache.Get(key); ok {
		return values, nil
	}
	res, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, res)
	return res, nil
}

func (l *lruEmbedder) EmbedMany(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		key := buildCacheKey(l.next.ModelName(), taskType, text)
		if values, ok := l.cache.Get(key); ok {
			results[i] = values
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return results, nil
	}
	fetched, err := l.next.EmbedMany(ctx, missing, taskType)
	if err != nil {
		return nil, err
	}
	for j, values := range fetched {
		idx := missingIdx[j]
		results[idx] = values
		l.cache.Add(buildCacheKey(l.next.ModelName(), taskType, texts[idx]), values)
	}
	return results, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func buildCacheKey(modelName, taskType, text string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	return modelName + ":" + taskType + ":" + hex.EncodeToString(hash[:])
}
