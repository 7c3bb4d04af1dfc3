package model

import (
	"time"

	"gorm.io/datatypes"
)

type ReviewAudit struct {
	Id            string         `gorm:"type:varchar(64);primaryKey"`
	SessionId     string         `gorm:"type:varchar(128);index"`
	Query         string         `gorm:"type:text;not null"`
	Answer        string         `gorm:"type:text;not null"`
	Reason        string         `gorm:"type:text"`
	Confidence    float64        `gorm:"not null"`
	Action        string         `gorm:"type:varchar(32)"`
	Intent        string         `gorm:"type:varchar(32)"`
	Status        string         `gorm:"type:varchar(16);not null;index"`
	ReviewerId    *string        `gorm:"type:varchar(128)"`
	Correction    *string        `gorm:"type:text"`
	Hallucination bool           `gorm:"not null;default:false"`
	Components    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DecidedAt     *time.Time
}

func (ReviewAudit) TableName() string {
	return "ca_review_audits"
}
