package dto

import (
	"time"
)

type QueryRequest struct {
	Question  string `json:"question" validate:"required,max=2000"`
	SessionId string `json:"session_id" validate:"required,max=128"`

	// Optional ground truth used only for evaluation.
	RelevantTitles []string `json:"relevant_titles,omitempty"`
	Reference      string   `json:"reference,omitempty"`
}

type SourceDTO struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Snippet  string `json:"snippet"`
}

type QueryResponse struct {
	Answer    string      `json:"answer"`
	Sources   []SourceDTO `json:"sources"`
	SessionId string      `json:"session_id"`

	Strategy      string  `json:"strategy"`
	Intent        string  `json:"intent"`
	Confidence    float64 `json:"confidence"`
	EscalatedToCA bool    `json:"escalated_to_ca"`
	ReviewId      string  `json:"review_id,omitempty"`
}

type SessionInfoResponse struct {
	SessionId     string    `json:"session_id"`
	WindowSize    int       `json:"window_size"`
	ExchangeCount int       `json:"exchange_count"`
	MessageCount  int       `json:"message_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
	AgeSeconds    float64   `json:"age_seconds"`
}

type ClearSessionResponse struct {
	SessionId string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

type ChatFeedbackRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	Rating    string `json:"rating" validate:"required,oneof=up down"`
	Query     string `json:"query,omitempty"`
	Answer    string `json:"answer,omitempty"`
	UserId    string `json:"user_id,omitempty"`
}

type ChatFeedbackResponse struct {
	SessionId     string  `json:"session_id"`
	BanditUpdated bool    `json:"bandit_updated"`
	Recorded      bool    `json:"recorded"`
	FeedbackId    string  `json:"feedback_id,omitempty"`
	Reward        float64 `json:"reward"`
}
