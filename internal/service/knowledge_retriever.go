package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"wealthadvisor-ai/internal/entity"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/internal/repository/contract"
	"wealthadvisor-ai/pkg/vectorindex"
)

// PgvectorRetriever serves retrieval from the knowledge_chunks table. Postgres
// returns the fetch_k nearest chunks and MMR runs here, so both backends
// re-rank identically.
type PgvectorRetriever struct {
	repo   contract.KnowledgeChunkRepository
	ready  atomic.Bool
	logger logger.ILogger
}

var _ vectorindex.Retriever = (*PgvectorRetriever)(nil)

func NewPgvectorRetriever(repo contract.KnowledgeChunkRepository, log logger.ILogger) *PgvectorRetriever {
	return &PgvectorRetriever{repo: repo, logger: log}
}

func (r *PgvectorRetriever) Ready() bool { return r.ready.Load() }

// Sync loads the corpus into the table when it is empty or force is set.
func (r *PgvectorRetriever) Sync(ctx context.Context, corpus vectorindex.CorpusFunc, emb vectorindex.Embedder, force bool) error {
	if !force {
		n, err := r.repo.Count(ctx)
		if err != nil {
			return fmt.Errorf("count knowledge chunks: %w", err)
		}
		if n > 0 {
			r.ready.Store(true)
			r.logger.Info("RETRIEVER", "Using existing pgvector corpus", map[string]interface{}{"chunks": n})
			return nil
		}
	}

	chunks, err := corpus()
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}

	rows := make([]*entity.KnowledgeChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = &entity.KnowledgeChunk{
			Title:     c.Metadata.Title,
			Category:  c.Metadata.Category,
			Source:    c.Metadata.Source,
			Content:   c.Content,
			Position:  i,
			Embedding: vectors[i],
		}
	}
	if err := r.repo.ReplaceAll(ctx, rows); err != nil {
		return fmt.Errorf("store knowledge chunks: %w", err)
	}
	r.ready.Store(true)
	r.logger.Info("RETRIEVER", "pgvector corpus rebuilt", map[string]interface{}{"chunks": len(rows)})
	return nil
}

func (r *PgvectorRetriever) Retrieve(ctx context.Context, query []float32, p vectorindex.Params) ([]vectorindex.Result, error) {
	if !r.ready.Load() {
		return nil, vectorindex.ErrNotReady
	}
	p = p.Normalized()
	scored, err := r.repo.Nearest(ctx, query, p.FetchK)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	candidates := make([]vectorindex.Result, len(scored))
	for i, s := range scored {
		candidates[i] = vectorindex.Result{
			Chunk: vectorindex.Chunk{
				Content: s.Chunk.Content,
				Metadata: vectorindex.Metadata{
					Title:    s.Chunk.Title,
					Category: s.Chunk.Category,
					Source:   s.Chunk.Source,
				},
			},
			Score:  s.Similarity,
			Rank:   i,
			Vector: s.Chunk.Embedding,
		}
	}
	return vectorindex.Rerank(candidates, p), nil
}
