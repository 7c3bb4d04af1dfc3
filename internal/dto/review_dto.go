package dto

import (
	"time"

	"wealthadvisor-ai/pkg/confidence"
)

type ListReviewsRequest struct {
	Status string `query:"status" validate:"omitempty,oneof=pending approved rejected edited"`
	Limit  int    `query:"limit" validate:"gte=0,lte=500"`
}

type ReviewItemDTO struct {
	Id         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	SessionId  string     `json:"session_id,omitempty"`
	Query      string     `json:"query"`
	Answer     string     `json:"answer"`
	Reason     string     `json:"reason"`
	Confidence float64    `json:"confidence"`
	Action     string     `json:"action,omitempty"`
	Intent     string     `json:"intent,omitempty"`
	Status     string     `json:"status"`
	ReviewerId string     `json:"reviewer_id,omitempty"`
	Correction string     `json:"correction,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
}

type ListReviewsResponse struct {
	Total int             `json:"total"`
	Items []ReviewItemDTO `json:"items"`
}

type ReviewDecisionRequest struct {
	Id         string `json:"-"`
	ReviewerId string `json:"-"`
	Status     string `json:"status" validate:"required,oneof=approved rejected edited"`
	Correction string `json:"correction,omitempty" validate:"required_if=Status edited"`
}

type ReviewDecisionResponse struct {
	Item           ReviewItemDTO `json:"item"`
	FeedbackSignal string        `json:"feedback_signal"`
	FeedbackId     string        `json:"feedback_id,omitempty"`
}

// EscalationEvent is the payload of a CA_ESCALATION event.
type EscalationEvent struct {
	confidence.ReviewItem
	Hallucination bool               `json:"hallucination"`
	Components    map[string]float64 `json:"components,omitempty"`
}

// ReviewDecisionEvent is the payload of a CA_REVIEW_DECISION event, both
// published after a local decision and consumed from other services.
type ReviewDecisionEvent struct {
	ReviewId   string `json:"review_id"`
	ReviewerId string `json:"reviewer_id"`
	Status     string `json:"status"`
	Correction string `json:"correction,omitempty"`
	Signal     string `json:"signal,omitempty"`
	FeedbackId string `json:"feedback_id,omitempty"`
}
