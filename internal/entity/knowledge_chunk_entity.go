package entity

import (
	"time"

	"github.com/google/uuid"
)

type KnowledgeChunk struct {
	Id        uuid.UUID
	Title     string
	Category  string
	Source    string
	Content   string
	Position  int
	Embedding []float32
	CreatedAt time.Time
}
