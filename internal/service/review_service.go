package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/internal/repository/contract"
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/evaluation"
	"wealthadvisor-ai/pkg/events"
	"wealthadvisor-ai/pkg/rlhf"
)

type IReviewService interface {
	List(ctx context.Context, req *dto.ListReviewsRequest) (*dto.ListReviewsResponse, error)
	Decide(ctx context.Context, req *dto.ReviewDecisionRequest) (*dto.ReviewDecisionResponse, error)
}

type reviewService struct {
	queue     *confidence.ReviewQueue
	auditRepo contract.ReviewAuditRepository
	rlhf      *rlhf.Pipeline
	publisher events.Publisher
	collector *evaluation.Collector
	logger    logger.ILogger
}

// NewReviewService wires the CA review workflow. auditRepo, publisher and
// collector may be nil.
func NewReviewService(
	queue *confidence.ReviewQueue,
	auditRepo contract.ReviewAuditRepository,
	pipeline *rlhf.Pipeline,
	publisher events.Publisher,
	collector *evaluation.Collector,
	log logger.ILogger,
) IReviewService {
	return &reviewService{
		queue:     queue,
		auditRepo: auditRepo,
		rlhf:      pipeline,
		publisher: publisher,
		collector: collector,
		logger:    log,
	}
}

var decisionSignals = map[string]rlhf.Signal{
	confidence.StatusApproved: rlhf.CAApproved,
	confidence.StatusRejected: rlhf.CARejected,
	confidence.StatusEdited:   rlhf.CACorrected,
}

func (s *reviewService) List(ctx context.Context, req *dto.ListReviewsRequest) (*dto.ListReviewsResponse, error) {
	items := s.queue.List(0)
	out := make([]dto.ReviewItemDTO, 0, len(items))
	for _, it := range items {
		if req.Status != "" && it.Status != req.Status {
			continue
		}
		out = append(out, reviewItemDTO(it))
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return &dto.ListReviewsResponse{Total: s.queue.Len(), Items: out}, nil
}

// Decide records a reviewer verdict on the queue, the audit table and the
// RLHF log, then announces it. Only the queue update can fail the call.
func (s *reviewService) Decide(ctx context.Context, req *dto.ReviewDecisionRequest) (*dto.ReviewDecisionResponse, error) {
	item, err := s.queue.UpdateStatus(req.Id, req.Status, req.ReviewerId, req.Correction)
	switch {
	case errors.Is(err, confidence.ErrNotFound):
		return nil, fiber.NewError(fiber.StatusNotFound, "review item not found")
	case errors.Is(err, confidence.ErrAlreadyReviewed):
		return nil, fiber.NewError(fiber.StatusConflict, "review item already decided")
	case errors.Is(err, confidence.ErrInvalidStatus):
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid review decision")
	case err != nil:
		return nil, fmt.Errorf("update review queue: %w", err)
	}

	if s.auditRepo != nil {
		found, err := s.auditRepo.RecordDecision(ctx, item.ID, item.Status, item.ReviewerID, item.Correction, item.UpdatedAt)
		if err != nil {
			s.logger.Error("REVIEW", "Failed to record decision in audit table", map[string]interface{}{"review_id": item.ID, "error": err.Error()})
		} else if !found {
			s.logger.Warn("REVIEW", "No audit row for decided review", map[string]interface{}{"review_id": item.ID})
		}
	}

	signal := decisionSignals[item.Status]
	res := &dto.ReviewDecisionResponse{Item: reviewItemDTO(item), FeedbackSignal: string(signal)}

	if s.rlhf != nil {
		rec, err := s.rlhf.RecordReview(rlhf.Record{
			SessionID:  item.SessionID,
			Query:      item.Query,
			Answer:     item.Answer,
			Action:     item.Action,
			Intent:     item.Intent,
			Signal:     signal,
			ReviewerID: item.ReviewerID,
			Correction: item.Correction,
		})
		if err != nil {
			s.logger.Error("REVIEW", "Failed to log CA feedback", map[string]interface{}{"review_id": item.ID, "error": err.Error()})
		} else {
			res.FeedbackId = rec.ID
		}
	}
	if s.collector != nil {
		s.collector.ObserveFeedback(string(signal))
	}

	publish(ctx, s.publisher, events.TypeReviewDecision, dto.ReviewDecisionEvent{
		ReviewId:   item.ID,
		ReviewerId: item.ReviewerID,
		Status:     item.Status,
		Correction: item.Correction,
		Signal:     string(signal),
		FeedbackId: res.FeedbackId,
	}, s.logger)

	s.logger.Info("REVIEW", "Review decided", map[string]interface{}{
		"review_id":   item.ID,
		"reviewer_id": item.ReviewerID,
		"status":      item.Status,
	})
	return res, nil
}

func reviewItemDTO(it confidence.ReviewItem) dto.ReviewItemDTO {
	out := dto.ReviewItemDTO{
		Id:         it.ID,
		Timestamp:  it.Timestamp,
		SessionId:  it.SessionID,
		Query:      it.Query,
		Answer:     it.Answer,
		Reason:     it.Reason,
		Confidence: it.Confidence,
		Action:     it.Action,
		Intent:     it.Intent,
		Status:     it.Status,
		ReviewerId: it.ReviewerID,
		Correction: it.Correction,
	}
	if !it.UpdatedAt.IsZero() {
		decided := it.UpdatedAt
		out.DecidedAt = &decided
	}
	return out
}
