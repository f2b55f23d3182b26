package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	appErr "github.com/xxxsen/docqna/internal/pkg/errors"

	"github.com/xxxsen/docqna/internal/ai"
	"github.com/xxxsen/docqna/internal/model"
)

// ScoredChunk pairs a stored chunk with its similarity to a query
// embedding. Score is in [-1, 1]; higher is more similar.
type ScoredChunk struct {
	Chunk model.Chunk
	Score float64
}

type chunkLister interface {
	ListByChat(ctx context.Context, userID, chatID string) ([]model.Chunk, error)
}

type queryEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type RetrievalService struct {
	chunks   chunkLister
	embedder queryEmbedder
	topK     int
}

func NewRetrievalService(chunks chunkLister, embedder queryEmbedder, topK int) *RetrievalService {
	if topK <= 0 {
		topK = 5
	}
	return &RetrievalService{chunks: chunks, embedder: embedder, topK: topK}
}

// RetrieveSimilar embeds the question and returns the stored chunks of
// the chat ranked by similarity, at most topK of them.
func (s *RetrievalService) RetrieveSimilar(ctx context.Context, userID, chatID, question string) ([]ScoredChunk, error) {
	query, err := s.embedder.Embed(ctx, question, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbeddingService, err)
	}
	candidates, err := s.chunks.ListByChat(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStorageUnavailable, err)
	}
	return Rank(query, candidates, s.topK), nil
}

// Rank scores every candidate against the query embedding and returns
// the top k in descending score order. Ties keep the candidates'
// original relative order. k larger than the candidate count returns
// all of them; an empty candidate list returns an empty slice.
func Rank(query []float32, candidates []model.Chunk, k int) []ScoredChunk {
	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, ScoredChunk{
			Chunk: c,
			Score: cosineSimilarity(query, c.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// cosineSimilarity accumulates in float64 to limit rounding drift on
// long vectors. Mismatched lengths and zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
