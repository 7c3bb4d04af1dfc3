package implementation

import (
	"context"

	"wealthadvisor-ai/internal/entity"
	"wealthadvisor-ai/internal/mapper"
	"wealthadvisor-ai/internal/model"
	"wealthadvisor-ai/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeChunkMapper
}

func NewKnowledgeChunkRepository(db *gorm.DB) contract.KnowledgeChunkRepository {
	return &KnowledgeChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeChunkMapper(),
	}
}

func (r *KnowledgeChunkRepositoryImpl) ReplaceAll(ctx context.Context, chunks []*entity.KnowledgeChunk) error {
	models := make([]*model.KnowledgeChunk, len(chunks))
	for i, c := range chunks {
		models[i] = r.mapper.ToModel(c)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.CreateInBatches(models, 200).Error
	})
}

// Nearest orders by pgvector cosine distance; similarity is 1 - distance.
func (r *KnowledgeChunkRepositoryImpl) Nearest(ctx context.Context, embedding []float32, limit int) ([]*contract.ScoredKnowledgeChunk, error) {
	if limit <= 0 {
		limit = 20
	}
	type result struct {
		model.KnowledgeChunk
		Similarity float64
	}
	var results []result
	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("knowledge_chunks").
		Select("knowledge_chunks.*, 1 - (embedding <=> ?) AS similarity", queryVector).
		Order(gorm.Expr("embedding <=> ?", queryVector)).
		Order("position ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredKnowledgeChunk, len(results))
	for i := range results {
		scored[i] = &contract.ScoredKnowledgeChunk{
			Chunk:      r.mapper.ToEntity(&results[i].KnowledgeChunk),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}

func (r *KnowledgeChunkRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.KnowledgeChunk{}).Count(&count).Error
	return count, err
}
