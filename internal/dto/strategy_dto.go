package dto

type SelectStrategyRequest struct {
	SessionId  string `json:"session_id" validate:"required"`
	Intent     string `json:"intent" validate:"omitempty,oneof=budget investment tax savings"`
	Anxiety    string `json:"anxiety_level" validate:"omitempty,oneof=high medium low"`
	Urgency    string `json:"urgency_level" validate:"omitempty,oneof=high medium low"`
	Confidence string `json:"confidence_level" validate:"omitempty,oneof=high medium low"`
	Polarity   string `json:"polarity" validate:"omitempty,oneof=positive neutral negative"`
}

type SelectStrategyResponse struct {
	SessionId     string             `json:"session_id"`
	Action        string             `json:"action"`
	ActionIdx     int                `json:"action_idx"`
	UCBScores     map[string]float64 `json:"ucb_scores"`
	ContextVector []float64          `json:"context_vector"`
}

type ArmStatsDTO struct {
	Action     string  `json:"action"`
	Selections int64   `json:"selections"`
	AvgReward  float64 `json:"rlhf_avg_reward"`
	NSamples   int     `json:"rlhf_n_samples"`
}

type StrategyStatsResponse struct {
	Alpha      float64       `json:"alpha"`
	ContextDim int           `json:"context_dim"`
	Arms       []ArmStatsDTO `json:"arms"`
}
