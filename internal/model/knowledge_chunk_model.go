package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type KnowledgeChunk struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title    string    `gorm:"type:varchar(255);not null;index"`
	Category string    `gorm:"type:varchar(64);index"`
	Source   string    `gorm:"type:varchar(255)"`
	Content  string    `gorm:"type:text;not null"`
	Position int       `gorm:"not null;default:0"`
	// Unsized so the column follows whichever embedding model built the corpus.
	Embedding pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
