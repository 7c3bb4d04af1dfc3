package mapper

import (
	"encoding/json"

	"wealthadvisor-ai/internal/entity"
	"wealthadvisor-ai/internal/model"

	"gorm.io/datatypes"
)

type ReviewAuditMapper struct{}

func NewReviewAuditMapper() *ReviewAuditMapper {
	return &ReviewAuditMapper{}
}

func (m *ReviewAuditMapper) ToEntity(r *model.ReviewAudit) *entity.ReviewAudit {
	if r == nil {
		return nil
	}
	var components map[string]float64
	if len(r.Components) > 0 {
		// A bad blob only loses the breakdown, not the audit row.
		_ = json.Unmarshal(r.Components, &components)
	}
	return &entity.ReviewAudit{
		Id:            r.Id,
		SessionId:     r.SessionId,
		Query:         r.Query,
		Answer:        r.Answer,
		Reason:        r.Reason,
		Confidence:    r.Confidence,
		Action:        r.Action,
		Intent:        r.Intent,
		Status:        r.Status,
		ReviewerId:    deref(r.ReviewerId),
		Correction:    deref(r.Correction),
		Hallucination: r.Hallucination,
		Components:    components,
		CreatedAt:     r.CreatedAt,
		DecidedAt:     r.DecidedAt,
	}
}

func (m *ReviewAuditMapper) ToModel(e *entity.ReviewAudit) *model.ReviewAudit {
	if e == nil {
		return nil
	}
	var components datatypes.JSON
	if len(e.Components) > 0 {
		raw, err := json.Marshal(e.Components)
		if err == nil {
			components = raw
		}
	}
	return &model.ReviewAudit{
		Id:            e.Id,
		SessionId:     e.SessionId,
		Query:         e.Query,
		Answer:        e.Answer,
		Reason:        e.Reason,
		Confidence:    e.Confidence,
		Action:        e.Action,
		Intent:        e.Intent,
		Status:        e.Status,
		ReviewerId:    ref(e.ReviewerId),
		Correction:    ref(e.Correction),
		Hallucination: e.Hallucination,
		Components:    components,
		CreatedAt:     e.CreatedAt,
		DecidedAt:     e.DecidedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
