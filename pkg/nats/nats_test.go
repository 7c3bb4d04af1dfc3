package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthadvisor-ai/pkg/events"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "advisor.ca_escalation", Subject(events.TypeEscalation))
	assert.Equal(t, "advisor.ca_review_decision", Subject(events.TypeReviewDecision))
}

func TestHandle(t *testing.T) {
	ev, err := events.New(events.TypeReviewDecision, map[string]interface{}{"review_id": "rev_1"})
	require.NoError(t, err)
	raw, err := events.Encode(ev)
	require.NoError(t, err)

	var seen string
	err = Handle(context.Background(), raw, func(_ context.Context, e events.Event) error {
		seen = e.Payload()["review_id"].(string)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "rev_1", seen)

	boom := errors.New("boom")
	err = Handle(context.Background(), raw, func(context.Context, events.Event) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = Handle(context.Background(), []byte("{"), func(context.Context, events.Event) error { return nil })
	assert.ErrorIs(t, err, events.ErrMalformedEvent)
}
