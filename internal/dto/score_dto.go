package dto

import (
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/hallucination"
)

type ScoreAnswerRequest struct {
	Query            string                       `json:"query" validate:"required"`
	Answer           string                       `json:"answer" validate:"required"`
	Category         string                       `json:"category,omitempty"`
	IntentConfidence *float64                     `json:"intent_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Retrieval        *confidence.RetrievalSignals `json:"retrieval_signals,omitempty"`
	SessionId        string                       `json:"session_id,omitempty"`
}

type ScoreAnswerResponse = confidence.Result

type HallucinationCheckRequest struct {
	Text     string `json:"text" validate:"required"`
	Category string `json:"category,omitempty"`
}

type HallucinationCheckResponse = hallucination.Result
