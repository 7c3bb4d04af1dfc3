package dto

import (
	"wealthadvisor-ai/pkg/embedding/cache"
	"wealthadvisor-ai/pkg/evaluation"
)

type MetricsResponse struct {
	Evaluation     evaluation.Aggregate `json:"evaluation"`
	EmbeddingCache *cache.Stats         `json:"embedding_cache,omitempty"`
	ActiveSessions int                  `json:"active_sessions"`
	EvictedTotal   int64                `json:"evicted_sessions_total"`
	ReviewQueueLen int                  `json:"review_queue_length"`
}
