package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthadvisor-ai/internal/dto"
	"wealthadvisor-ai/internal/pkg/logger"
	"wealthadvisor-ai/pkg/confidence"
	"wealthadvisor-ai/pkg/events"
)

type broadcast struct {
	eventType string
	data      any
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, eventType string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{eventType: eventType, data: data})
	return nil
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

func TestConsumer_PersistsAndBroadcastsEscalations(t *testing.T) {
	bus := events.NewBus()
	t.Cleanup(func() { bus.Close() })
	repo := newMemoryAuditRepo()
	bc := &recordingBroadcaster{}
	q := confidence.NewReviewQueue(10)
	reviews := NewReviewService(q, repo, nil, bus, nil, logger.NewNopLogger())
	consumer := NewConsumerService(bus, repo, bc, reviews, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Consume(ctx))

	item := escalate(t, q, "How is LTCG on equity taxed?")
	verdict := confidence.Result{ReviewID: item.ID, Components: map[string]float64{"retrieval": 0.4}}
	publishEscalation(ctx, bus, q, verdict, logger.NewNopLogger())

	require.Eventually(t, func() bool {
		row, _ := repo.FindById(ctx, item.ID)
		return row != nil
	}, 2*time.Second, 10*time.Millisecond)
	row, err := repo.FindById(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "How is LTCG on equity taxed?", row.Query)
	assert.Equal(t, confidence.StatusPending, row.Status)
	assert.Equal(t, 0.4, row.Components["retrieval"])

	_, err = reviews.Decide(ctx, &dto.ReviewDecisionRequest{Id: item.ID, ReviewerId: "ca-1", Status: confidence.StatusApproved})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return bc.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	bc.mu.Lock()
	assert.Equal(t, events.TypeEscalation, bc.sent[0].eventType)
	assert.Equal(t, events.TypeReviewDecision, bc.sent[1].eventType)
	bc.mu.Unlock()
}

func TestConsumer_HandleExternalDecision(t *testing.T) {
	q := confidence.NewReviewQueue(10)
	reviews := NewReviewService(q, nil, nil, nil, nil, logger.NewNopLogger())
	consumer := NewConsumerService(events.NewBus(), nil, nil, reviews, logger.NewNopLogger())
	ctx := context.Background()
	item := escalate(t, q, "q")

	ev, err := events.New(events.TypeReviewDecision, dto.ReviewDecisionEvent{
		ReviewId:   item.ID,
		ReviewerId: "ca-2",
		Status:     confidence.StatusRejected,
	})
	require.NoError(t, err)

	require.NoError(t, consumer.HandleExternalDecision(ctx, ev))
	got, ok := q.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, confidence.StatusRejected, got.Status)
	assert.Equal(t, "ca-2", got.ReviewerID)

	// Redelivery of an applied decision is skipped, not retried.
	assert.NoError(t, consumer.HandleExternalDecision(ctx, ev))

	unknown, err := events.New(events.TypeReviewDecision, dto.ReviewDecisionEvent{ReviewId: "elsewhere", Status: confidence.StatusApproved})
	require.NoError(t, err)
	assert.NoError(t, consumer.HandleExternalDecision(ctx, unknown))
}
