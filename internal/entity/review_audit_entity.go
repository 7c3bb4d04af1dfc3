package entity

import "time"

// ReviewAudit is the durable record of one answer escalated to a chartered
// accountant and what the reviewer decided.
type ReviewAudit struct {
	Id            string
	SessionId     string
	Query         string
	Answer        string
	Reason        string
	Confidence    float64
	Action        string
	Intent        string
	Status        string
	ReviewerId    string
	Correction    string
	Hallucination bool
	Components    map[string]float64
	CreatedAt     time.Time
	DecidedAt     *time.Time
}
