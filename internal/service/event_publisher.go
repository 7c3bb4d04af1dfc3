package service

import (
	"context"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/events"
)

// publish is best effort: a broker outage never fails the request that
// produced the event.
func publish(ctx context.Context, pub events.Publisher, eventType string, payload any, log logger.ILogger) {
	if pub == nil {
		return
	}
	ev, err := events.New(eventType, payload)
	if err != nil {
		log.Error("EVENTS", "Failed to build event", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}
	if err := pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn("EVENTS", "Failed to publish event", map[string]interface{}{
			"type":     eventType,
			"event_id": ev.EventID(),
			"error":    err.Error(),
		})
	}
}

func publishEscalation(ctx context.Context, pub events.Publisher, queue *confidence.ReviewQueue, verdict confidence.Result, log logger.ILogger) {
	if queue == nil || verdict.ReviewID == "" {
		return
	}
	item, ok := queue.Get(verdict.ReviewID)
	if !ok {
		return
	}
	publish(ctx, pub, events.TypeEscalation, dto.EscalationEvent{
		ReviewItem:    item,
		Hallucination: verdict.Hallucination != nil && verdict.Hallucination.IsHallucination,
		Components:    verdict.Components,
	}, log)
}
