package contract

import (
	"context"

	"wealthadvisor-ai/internal/entity"
)

// ScoredKnowledgeChunk carries cosine similarity (1 = identical).
type ScoredKnowledgeChunk struct {
	Chunk      *entity.KnowledgeChunk
	Similarity float64
}

type KnowledgeChunkRepository interface {
	// ReplaceAll swaps the whole corpus in one transaction.
	ReplaceAll(ctx context.Context, chunks []*entity.KnowledgeChunk) error
	Nearest(ctx context.Context, embedding []float32, limit int) ([]*ScoredKnowledgeChunk, error)
	Count(ctx context.Context) (int64, error)
}
