package service

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/evaluation"
	"wealthadvisor-ai/pkg/events"
)

type IScoringService interface {
	ScoreAnswer(ctx context.Context, req *dto.ScoreAnswerRequest) (*dto.ScoreAnswerResponse, error)
	CheckHallucination(ctx context.Context, req *dto.HallucinationCheckRequest) (*dto.HallucinationCheckResponse, error)
}

type scoringService struct {
	gate      *confidence.Gate
	publisher events.Publisher
	collector *evaluation.Collector
	logger    logger.ILogger
}

func NewScoringService(gate *confidence.Gate, publisher events.Publisher, collector *evaluation.Collector, log logger.ILogger) IScoringService {
	return &scoringService{gate: gate, publisher: publisher, collector: collector, logger: log}
}

// defaultIntentConfidence is used when the caller did not classify the query.
const defaultIntentConfidence = 0.5

func (s *scoringService) ScoreAnswer(ctx context.Context, req *dto.ScoreAnswerRequest) (*dto.ScoreAnswerResponse, error) {
	intentConfidence := defaultIntentConfidence
	if req.IntentConfidence != nil {
		intentConfidence = *req.IntentConfidence
	}
	res, err := s.gate.Evaluate(confidence.Request{
		Query:            req.Query,
		Answer:           req.Answer,
		Category:         req.Category,
		Retrieval:        req.Retrieval,
		IntentConfidence: intentConfidence,
		SessionID:        req.SessionId,
	})
	if errors.Is(err, confidence.ErrMissingField) {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return nil, err
	}
	if res.EscalateToCA {
		if s.collector != nil {
			s.collector.ObserveEscalation()
		}
		publishEscalation(ctx, s.publisher, s.gate.Queue(), res, s.logger)
	}
	return &res, nil
}

func (s *scoringService) CheckHallucination(ctx context.Context, req *dto.HallucinationCheckRequest) (*dto.HallucinationCheckResponse, error) {
	res := s.gate.Detector().Check(req.Text, req.Category)
	return &res, nil
}
