package dto

import (
	"time"
)

type RLHFFeedbackRequest struct {
	SessionId string `json:"session_id"`
	Query     string `json:"query" validate:"required"`
	Answer    string `json:"answer"`
	Action    string `json:"action" validate:"omitempty,oneof=retrieval_only intent_boosted sentiment_adapted entity_focused full_pipeline"`
	Intent    string `json:"intent"`
	Signal    string `json:"signal"`
	UserId    string `json:"user_id,omitempty"`
}

type RLHFRunRequest struct {
	Since *time.Time `json:"since,omitempty"`
}

type PreferenceResponse struct {
	Query      string  `json:"query"`
	QueryHash  string  `json:"query_hash"`
	Score      float64 `json:"score"`
	Positive   int     `json:"positive"`
	Negative   int     `json:"negative"`
	HasHistory bool    `json:"has_history"`
}
