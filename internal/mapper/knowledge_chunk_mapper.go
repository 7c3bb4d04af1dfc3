package mapper

import (
	"wealthadvisor-ai/internal/entity"
	"wealthadvisor-ai/internal/model"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type KnowledgeChunkMapper struct{}

func NewKnowledgeChunkMapper() *KnowledgeChunkMapper {
	return &KnowledgeChunkMapper{}
}

func (m *KnowledgeChunkMapper) ToEntity(k *model.KnowledgeChunk) *entity.KnowledgeChunk {
	if k == nil {
		return nil
	}
	return &entity.KnowledgeChunk{
		Id:        k.Id,
		Title:     k.Title,
		Category:  k.Category,
		Source:    k.Source,
		Content:   k.Content,
		Position:  k.Position,
		Embedding: k.Embedding.Slice(),
		CreatedAt: k.CreatedAt,
	}
}

func (m *KnowledgeChunkMapper) ToModel(e *entity.KnowledgeChunk) *model.KnowledgeChunk {
	if e == nil {
		return nil
	}
	id := e.Id
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &model.KnowledgeChunk{
		Id:        id,
		Title:     e.Title,
		Category:  e.Category,
		Source:    e.Source,
		Content:   e.Content,
		Position:  e.Position,
		Embedding: pgvector.NewVector(e.Embedding),
		CreatedAt: e.CreatedAt,
	}
}
