package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/pkg/evaluation"
	"wealthadvisor-ai/pkg/events"
	"wealthadvisor-ai/pkg/rlhf"
)

type IRLHFService interface {
	Feedback(ctx context.Context, req *dto.RLHFFeedbackRequest) (*rlhf.FeedbackResponse, error)
	Run(ctx context.Context, req *dto.RLHFRunRequest) (*rlhf.Report, error)
	Preference(ctx context.Context, query string) (*dto.PreferenceResponse, error)
}

type rlhfService struct {
	pipeline  *rlhf.Pipeline
	publisher events.Publisher
	collector *evaluation.Collector
	logger    logger.ILogger
}

func NewRLHFService(pipeline *rlhf.Pipeline, publisher events.Publisher, collector *evaluation.Collector, log logger.ILogger) IRLHFService {
	return &rlhfService{pipeline: pipeline, publisher: publisher, collector: collector, logger: log}
}

// Feedback never fails on a bad signal; the response carries recorded=false
// and the reason instead.
func (s *rlhfService) Feedback(ctx context.Context, req *dto.RLHFFeedbackRequest) (*rlhf.FeedbackResponse, error) {
	res := s.pipeline.Feedback(rlhf.FeedbackRequest{
		SessionID: req.SessionId,
		Query:     req.Query,
		Answer:    req.Answer,
		Action:    req.Action,
		Intent:    req.Intent,
		Signal:    req.Signal,
		UserID:    req.UserId,
	})
	if !res.Recorded {
		return &res, nil
	}
	if s.collector != nil {
		s.collector.ObserveFeedback(orDefault(req.Signal, string(rlhf.ThumbsUp)))
	}
	publish(ctx, s.publisher, events.TypeFeedback, map[string]interface{}{
		"feedback_id": res.ID,
		"session_id":  req.SessionId,
		"action":      req.Action,
		"intent":      req.Intent,
		"signal":      orDefault(req.Signal, string(rlhf.ThumbsUp)),
		"reward":      res.Reward,
	}, s.logger)
	return &res, nil
}

func (s *rlhfService) Run(ctx context.Context, req *dto.RLHFRunRequest) (*rlhf.Report, error) {
	var since *time.Time
	if req != nil {
		since = req.Since
	}
	report, err := s.pipeline.Run(ctx, since)
	if errors.Is(err, rlhf.ErrRunInProgress) {
		return nil, fiber.NewError(fiber.StatusConflict, "an RLHF run is already in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("rlhf run: %w", err)
	}

	s.logger.Info("RLHF", "Run finished", map[string]interface{}{
		"status":            report.Status,
		"records_processed": report.RecordsProcessed,
		"report":            report.ReportPath,
	})
	if report.Status == rlhf.StatusSuccess {
		publish(ctx, s.publisher, events.TypeRLHFRun, report, s.logger)
	}
	return &report, nil
}

func (s *rlhfService) Preference(ctx context.Context, query string) (*dto.PreferenceResponse, error) {
	if query == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "query is required")
	}
	res := &dto.PreferenceResponse{Query: query, QueryHash: rlhf.QueryKey(query), Score: 0.5}
	if pref, ok := s.pipeline.Preferences().Lookup(query); ok {
		res.Score = pref.Score()
		res.Positive = pref.Positive
		res.Negative = pref.Negative
		res.HasHistory = true
	}
	return res, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// RLHFScheduler runs the pipeline on a fixed interval until stopped.
type RLHFScheduler struct {
	service  IRLHFService
	interval time.Duration
	logger   logger.ILogger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewRLHFScheduler(service IRLHFService, interval time.Duration, log logger.ILogger) *RLHFScheduler {
	return &RLHFScheduler{
		service:  service,
		interval: interval,
		logger:   log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *RLHFScheduler) Start(ctx context.Context) {
	if s.interval <= 0 || !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info("RLHF", "Scheduler started", map[string]interface{}{"interval": s.interval.String()})
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if _, err := s.service.Run(ctx, nil); err != nil {
					s.logger.Error("RLHF", "Scheduled run failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()
}

// Stop waits for an in-flight run to finish.
func (s *RLHFScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}
