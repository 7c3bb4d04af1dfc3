package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gofiber/fiber/v2"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/entity"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/internal/repository/contract"
	"wealthadvisor-ai/pkg/events"
)

// ReviewBroadcaster pushes an event to connected reviewers.
type ReviewBroadcaster interface {
	Broadcast(ctx context.Context, eventType string, data any) error
}

// EventSource is the in-process bus the consumer reads from.
type EventSource interface {
	Subscribe(ctx context.Context, eventType string) (<-chan *message.Message, error)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
	// HandleExternalDecision applies a CA decision made on another instance.
	HandleExternalDecision(ctx context.Context, event events.Event) error
}

type consumerService struct {
	source      EventSource
	auditRepo   contract.ReviewAuditRepository
	broadcaster ReviewBroadcaster
	reviews     IReviewService
	logger      logger.ILogger
}

// NewConsumerService persists escalations and keeps the reviewer feed live.
// auditRepo and broadcaster may be nil.
func NewConsumerService(
	source EventSource,
	auditRepo contract.ReviewAuditRepository,
	broadcaster ReviewBroadcaster,
	reviews IReviewService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		source:      source,
		auditRepo:   auditRepo,
		broadcaster: broadcaster,
		reviews:     reviews,
		logger:      log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	escalations, err := cs.source.Subscribe(ctx, events.TypeEscalation)
	if err != nil {
		return fmt.Errorf("subscribe escalations: %w", err)
	}
	decisions, err := cs.source.Subscribe(ctx, events.TypeReviewDecision)
	if err != nil {
		return fmt.Errorf("subscribe review decisions: %w", err)
	}

	go cs.drain(ctx, escalations, cs.handleEscalation)
	go cs.drain(ctx, decisions, cs.handleDecision)
	return nil
}

func (cs *consumerService) drain(ctx context.Context, messages <-chan *message.Message, handle func(context.Context, events.Event) error) {
	for msg := range messages {
		ev, err := events.Decode(msg.Payload)
		if err != nil {
			cs.logger.Error("CONSUMER", "Dropping malformed event", map[string]interface{}{"message_id": msg.UUID, "error": err.Error()})
			msg.Ack()
			continue
		}
		if err := handle(ctx, ev); err != nil {
			cs.logger.Error("CONSUMER", "Event handling failed", map[string]interface{}{
				"event_id": ev.EventID(),
				"type":     ev.EventType(),
				"error":    err.Error(),
			})
		}
		// In-process delivery is at most once; a failed handler is logged, not retried.
		msg.Ack()
	}
}

func (cs *consumerService) handleEscalation(ctx context.Context, ev events.Event) error {
	var payload dto.EscalationEvent
	if err := events.Bind(ev, &payload); err != nil {
		return fmt.Errorf("bind escalation: %w", err)
	}

	var errs []error
	if cs.auditRepo != nil {
		err := cs.auditRepo.Create(ctx, &entity.ReviewAudit{
			Id:            payload.ID,
			SessionId:     payload.SessionID,
			Query:         payload.Query,
			Answer:        payload.Answer,
			Reason:        payload.Reason,
			Confidence:    payload.Confidence,
			Action:        payload.Action,
			Intent:        payload.Intent,
			Status:        payload.Status,
			Hallucination: payload.Hallucination,
			Components:    payload.Components,
			CreatedAt:     payload.Timestamp,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("store review audit: %w", err))
		}
	}
	if cs.broadcaster != nil {
		if err := cs.broadcaster.Broadcast(ctx, events.TypeEscalation, payload); err != nil {
			errs = append(errs, fmt.Errorf("broadcast escalation: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (cs *consumerService) handleDecision(ctx context.Context, ev events.Event) error {
	if cs.broadcaster == nil {
		return nil
	}
	var payload dto.ReviewDecisionEvent
	if err := events.Bind(ev, &payload); err != nil {
		return fmt.Errorf("bind review decision: %w", err)
	}
	return cs.broadcaster.Broadcast(ctx, events.TypeReviewDecision, payload)
}

// HandleExternalDecision is the NATS handler for decisions. Decisions this
// instance cannot apply (unknown item, already decided, invalid) are
// acknowledged and skipped.
func (cs *consumerService) HandleExternalDecision(ctx context.Context, ev events.Event) error {
	var payload dto.ReviewDecisionEvent
	if err := events.Bind(ev, &payload); err != nil {
		return fmt.Errorf("bind review decision: %w", err)
	}
	_, err := cs.reviews.Decide(ctx, &dto.ReviewDecisionRequest{
		Id:         payload.ReviewId,
		ReviewerId: payload.ReviewerId,
		Status:     payload.Status,
		Correction: payload.Correction,
	})
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		cs.logger.Debug("CONSUMER", "Skipping external decision", map[string]interface{}{"review_id": payload.ReviewId, "reason": fe.Message})
		return nil
	}
	return err
}
